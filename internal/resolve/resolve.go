package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrEmptySpec       = errors.New("locator spec has no alternatives")
)

// Strategy selects how the driver interprets a locator pattern.
type Strategy string

const (
	StrategyCSS    Strategy = "css"
	StrategyXPath  Strategy = "xpath"
	StrategyScript Strategy = "script"
)

// LabelPlaceholder is replaced by each variant of an Alternative.
const LabelPlaceholder = "{label}"

// DefaultTimeout is the per-alternative wait used when none is configured.
const DefaultTimeout = 15 * time.Second

// Alternative is one way of finding a logical element. When Variants is set,
// Pattern carries LabelPlaceholder and every variant is tried in order before
// the chain moves on.
type Alternative struct {
	Strategy Strategy
	Pattern  string
	Variants []string
}

// Queries expands the alternative into concrete selectors, one per variant.
func (a Alternative) Queries() []string {
	if len(a.Variants) == 0 {
		return []string{a.Pattern}
	}

	out := make([]string, 0, len(a.Variants))
	for _, v := range a.Variants {
		out = append(out, strings.ReplaceAll(a.Pattern, LabelPlaceholder, v))
	}
	return out
}

func (a Alternative) String() string {
	return fmt.Sprintf("%s:%s", a.Strategy, a.Pattern)
}

// LocatorSpec lists the alternatives for one logical UI element, most stable
// first.
type LocatorSpec struct {
	Name         string
	Alternatives []Alternative
}

// Query is a single lookup handed to a Finder.
type Query struct {
	Strategy Strategy
	Selector string
	Timeout  time.Duration
}

// Finder locates an element, blocking up to q.Timeout for it to become
// usable. E is the driver's element handle and is opaque to this package.
type Finder[E any] interface {
	Find(ctx context.Context, q Query) (E, error)
}

// Highlighter is implemented by handles that can mark themselves visually.
type Highlighter interface {
	Highlight(ctx context.Context) error
}

// Failure records why one alternative did not resolve.
type Failure struct {
	Index       int
	Alternative Alternative
	Err         error
}

func (f Failure) String() string {
	return fmt.Sprintf("#%d %s: %v", f.Index, f.Alternative, f.Err)
}

// NotFoundError aggregates one Failure per attempted alternative.
type NotFoundError struct {
	Target   string
	Failures []Failure
}

func (e *NotFoundError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("%s: %s after %d alternatives [%s]",
		e.Target, ErrElementNotFound, len(e.Failures), strings.Join(parts, "; "))
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrElementNotFound
}

// Result is the outcome of a resolution. Element is only meaningful when
// Found reports true.
type Result[E any] struct {
	Target   string
	Element  E
	Index    int
	Variant  string
	Selector string
	Failures []Failure
	found    bool
}

func (r *Result[E]) Found() bool {
	return r.found
}

// Err returns a *NotFoundError when nothing resolved.
func (r *Result[E]) Err() error {
	if r.found {
		return nil
	}
	return &NotFoundError{Target: r.Target, Failures: r.Failures}
}

type Resolver[E any] struct {
	finder    Finder[E]
	timeout   time.Duration
	highlight bool
	logger    *slog.Logger
}

// Options tunes a Resolver. Zero values fall back to defaults.
type Options struct {
	Timeout   time.Duration
	Highlight bool
	Logger    *slog.Logger
}

func NewResolver[E any](finder Finder[E], opts Options) *Resolver[E] {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Resolver[E]{
		finder:    finder,
		timeout:   opts.Timeout,
		highlight: opts.Highlight,
		logger:    opts.Logger.With("component", "resolver"),
	}
}

func (r *Resolver[E]) Timeout() time.Duration {
	return r.timeout
}

// Resolve walks spec's alternatives in order and returns the first element
// found. The returned error is non-nil only for an empty spec or a cancelled
// context; a miss is reported through Result.Found and Result.Err.
func (r *Resolver[E]) Resolve(ctx context.Context, spec LocatorSpec) (*Result[E], error) {
	return r.ResolveWithin(ctx, spec, r.timeout)
}

// ResolveWithin is Resolve with an explicit per-alternative timeout.
func (r *Resolver[E]) ResolveWithin(ctx context.Context, spec LocatorSpec, timeout time.Duration) (*Result[E], error) {
	res := &Result[E]{Target: spec.Name, Index: -1}

	if len(spec.Alternatives) == 0 {
		return res, fmt.Errorf("%s: %w", spec.Name, ErrEmptySpec)
	}

	for i, alt := range spec.Alternatives {
		var errs []error

		for j, selector := range alt.Queries() {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			el, err := r.finder.Find(ctx, Query{
				Strategy: alt.Strategy,
				Selector: selector,
				Timeout:  timeout,
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return res, ctxErr
				}
				errs = append(errs, fmt.Errorf("%s: %w", selector, err))
				continue
			}

			res.Element = el
			res.Index = i
			res.Selector = selector
			if len(alt.Variants) > 0 {
				res.Variant = alt.Variants[j]
			}
			res.found = true

			r.logger.Info("element resolved",
				"target", spec.Name,
				"alternative", i,
				"strategy", alt.Strategy,
				"variant", res.Variant,
				"failed_before", len(res.Failures))

			if r.highlight {
				r.mark(ctx, spec.Name, el)
			}
			return res, nil
		}

		failure := Failure{Index: i, Alternative: alt, Err: errors.Join(errs...)}
		res.Failures = append(res.Failures, failure)
		r.logger.Debug("alternative failed", "target", spec.Name, "failure", failure.String())
	}

	r.logger.Warn("element not resolved", "target", spec.Name, "alternatives", len(spec.Alternatives))
	return res, nil
}

func (r *Resolver[E]) mark(ctx context.Context, target string, el E) {
	h, ok := any(el).(Highlighter)
	if !ok {
		return
	}
	if err := h.Highlight(ctx); err != nil {
		r.logger.Debug("highlight failed", "target", target, "error", err)
	}
}
