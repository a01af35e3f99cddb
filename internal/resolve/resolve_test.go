package resolve

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	selector    string
	highlighted int
}

func (e *fakeElement) Highlight(ctx context.Context) error {
	e.highlighted++
	return nil
}

// fakeFinder resolves only the selectors listed in present.
type fakeFinder struct {
	present map[string]*fakeElement
	calls   []Query
}

func (f *fakeFinder) Find(ctx context.Context, q Query) (*fakeElement, error) {
	f.calls = append(f.calls, q)
	if el, ok := f.present[q.Selector]; ok {
		return el, nil
	}
	return nil, errors.New("timeout waiting for " + q.Selector)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(f *fakeFinder) *Resolver[*fakeElement] {
	return NewResolver[*fakeElement](f, Options{Timeout: time.Second, Logger: quietLogger()})
}

func countrySpec() LocatorSpec {
	return LocatorSpec{
		Name: "korea-option",
		Alternatives: []Alternative{
			{Strategy: StrategyCSS, Pattern: "div.select--item--32FADYB"},
			{Strategy: StrategyXPath, Pattern: "//span[text()='{label}']", Variants: []string{"Korea"}},
			{Strategy: StrategyXPath, Pattern: "//span[text()='{label}']", Variants: []string{"대한민국"}},
		},
	}
}

func TestResolve_ShortCircuitsOnFirstMatch(t *testing.T) {
	finder := &fakeFinder{present: map[string]*fakeElement{
		"#second": {selector: "#second"},
		"#third":  {selector: "#third"},
	}}
	spec := LocatorSpec{
		Name: "button",
		Alternatives: []Alternative{
			{Strategy: StrategyCSS, Pattern: "#first"},
			{Strategy: StrategyCSS, Pattern: "#second"},
			{Strategy: StrategyCSS, Pattern: "#third"},
		},
	}

	res, err := newTestResolver(finder).Resolve(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, res.Found())

	assert.Equal(t, 1, res.Index)
	assert.Equal(t, "#second", res.Element.selector)
	assert.Len(t, res.Failures, 1)
	require.Len(t, finder.calls, 2, "third alternative must never be tried")
	assert.Equal(t, "#first", finder.calls[0].Selector)
	assert.Equal(t, "#second", finder.calls[1].Selector)
	assert.NoError(t, res.Err())
}

func TestResolve_AllAlternativesFail(t *testing.T) {
	finder := &fakeFinder{present: map[string]*fakeElement{}}
	spec := LocatorSpec{
		Name: "collect-button",
		Alternatives: []Alternative{
			{Strategy: StrategyXPath, Pattern: "//div[contains(@class,'checkin-button')]"},
			{Strategy: StrategyXPath, Pattern: "//div[contains(text(),'{label}')]", Variants: []string{"Collect", "출석체크", "적립하기"}},
			{Strategy: StrategyScript, Pattern: "() => null"},
		},
	}

	res, err := newTestResolver(finder).Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.Equal(t, -1, res.Index)

	require.Len(t, res.Failures, 3, "one failure per alternative")
	for i, f := range res.Failures {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, spec.Alternatives[i], f.Alternative)
		assert.Error(t, f.Err)
	}
	assert.Contains(t, res.Failures[1].Err.Error(), "출석체크")

	notFound := res.Err()
	assert.ErrorIs(t, notFound, ErrElementNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, notFound, &nf)
	assert.Equal(t, "collect-button", nf.Target)
	assert.Len(t, nf.Failures, 3)

	// 1 + 3 variants + 1
	assert.Len(t, finder.calls, 5)
}

func TestResolve_TriesEveryVariantBeforeNextAlternative(t *testing.T) {
	finder := &fakeFinder{present: map[string]*fakeElement{
		"//div[@class='item' and contains(., '대한민국')]": {selector: "korean"},
		"#flag-kr": {selector: "flag"},
	}}
	spec := LocatorSpec{
		Name: "korea-option",
		Alternatives: []Alternative{
			{Strategy: StrategyXPath, Pattern: "//div[@class='item' and contains(., '{label}')]", Variants: []string{"Korea", "대한민국"}},
			{Strategy: StrategyCSS, Pattern: "#flag-kr"},
		},
	}

	res, err := newTestResolver(finder).Resolve(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, res.Found())

	assert.Equal(t, 0, res.Index)
	assert.Equal(t, "대한민국", res.Variant)
	assert.Equal(t, "korean", res.Element.selector)
	assert.Empty(t, res.Failures)
	require.Len(t, finder.calls, 2)
	assert.Contains(t, finder.calls[0].Selector, "Korea")
}

func TestResolve_ThirdAlternativeAfterTwoFailures(t *testing.T) {
	finder := &fakeFinder{present: map[string]*fakeElement{
		"//span[text()='대한민국']": {selector: "korean"},
	}}

	res, err := newTestResolver(finder).Resolve(context.Background(), countrySpec())
	require.NoError(t, err)
	require.True(t, res.Found())

	assert.Equal(t, 2, res.Index)
	assert.Equal(t, "korean", res.Element.selector)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, StrategyCSS, res.Failures[0].Alternative.Strategy)
	assert.Equal(t, "Korea", res.Failures[1].Alternative.Variants[0])
}

func TestResolve_Idempotent(t *testing.T) {
	finder := &fakeFinder{present: map[string]*fakeElement{
		"//span[text()='Korea']": {selector: "english"},
	}}
	r := newTestResolver(finder)

	first, err := r.Resolve(context.Background(), countrySpec())
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), countrySpec())
	require.NoError(t, err)

	assert.Equal(t, first.Index, second.Index)
	assert.Equal(t, first.Selector, second.Selector)
}

func TestResolve_PassesTimeout(t *testing.T) {
	finder := &fakeFinder{present: map[string]*fakeElement{"a": {}}}
	spec := LocatorSpec{Name: "a", Alternatives: []Alternative{{Strategy: StrategyCSS, Pattern: "a"}}}

	_, err := newTestResolver(finder).ResolveWithin(context.Background(), spec, 3*time.Second)
	require.NoError(t, err)
	require.Len(t, finder.calls, 1)
	assert.Equal(t, 3*time.Second, finder.calls[0].Timeout)

	_, err = newTestResolver(finder).Resolve(context.Background(), spec)
	require.NoError(t, err)
	assert.Equal(t, time.Second, finder.calls[1].Timeout)
}

func TestResolve_EmptySpec(t *testing.T) {
	_, err := newTestResolver(&fakeFinder{}).Resolve(context.Background(), LocatorSpec{Name: "nothing"})
	assert.ErrorIs(t, err, ErrEmptySpec)
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finder := &fakeFinder{present: map[string]*fakeElement{}}
	res, err := newTestResolver(finder).Resolve(ctx, countrySpec())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Found())
	assert.Empty(t, finder.calls)
}

func TestResolve_Highlight(t *testing.T) {
	el := &fakeElement{selector: "#save"}
	finder := &fakeFinder{present: map[string]*fakeElement{"#save": el}}
	spec := LocatorSpec{Name: "save", Alternatives: []Alternative{{Strategy: StrategyCSS, Pattern: "#save"}}}

	r := NewResolver[*fakeElement](finder, Options{Highlight: true, Logger: quietLogger()})
	assert.Equal(t, DefaultTimeout, r.Timeout())

	res, err := r.Resolve(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, res.Found())
	assert.Equal(t, 1, el.highlighted)
}

func TestAlternative_Queries(t *testing.T) {
	plain := Alternative{Strategy: StrategyCSS, Pattern: "#x"}
	assert.Equal(t, []string{"#x"}, plain.Queries())

	multi := Alternative{Strategy: StrategyXPath, Pattern: "//b[text()='{label}']", Variants: []string{"Collect", "체크인"}}
	assert.Equal(t, []string{"//b[text()='Collect']", "//b[text()='체크인']"}, multi.Queries())
}
