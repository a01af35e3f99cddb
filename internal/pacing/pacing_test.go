package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_StaysInRange(t *testing.T) {
	p := New(42)
	for i := 0; i < 200; i++ {
		d := p.Duration(time.Second, 3*time.Second)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 3*time.Second)
	}

	assert.Equal(t, 2*time.Second, p.Duration(2*time.Second, 2*time.Second))
	assert.Equal(t, 2*time.Second, p.Duration(2*time.Second, time.Second))
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestInstant_DoesNotBlock(t *testing.T) {
	p := Instant(1)

	start := time.Now()
	require.NoError(t, p.Between(context.Background(), time.Hour, 2*time.Hour))
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	b := NewBackoff(Instant(7), Range{Min: 10 * time.Second, Max: 20 * time.Second})

	require.NoError(t, b.Wait(context.Background()))
	assert.Equal(t, Range{Min: 15 * time.Second, Max: 30 * time.Second}, b.Current())

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Wait(context.Background()))
	}
	assert.Equal(t, 60*time.Second, b.Current().Max)

	b.Reset()
	assert.Equal(t, Range{Min: 10 * time.Second, Max: 20 * time.Second}, b.Current())
}

func TestKeystrokes_WithoutMistakes(t *testing.T) {
	prof := DefaultTypingProfile()
	prof.TypoRate = 0
	prof.ThinkRate = 0

	plan := New(3).Keystrokes("Korea", prof)
	require.Len(t, plan, 5)
	for _, k := range plan {
		assert.Empty(t, k.Key)
		assert.GreaterOrEqual(t, k.Delay, prof.KeyPause.Min)
		assert.Less(t, k.Delay, prof.KeyPause.Max)
	}
	assert.Equal(t, "Korea", Typed(plan))
}

func TestKeystrokes_TyposAreCorrected(t *testing.T) {
	prof := DefaultTypingProfile()
	prof.TypoRate = 1

	plan := New(9).Keystrokes("대한민국", prof)
	require.Len(t, plan, 12)
	for i := 0; i < len(plan); i += 3 {
		assert.Contains(t, typoAlphabet, plan[i].Text)
		assert.Equal(t, KeyBackspace, plan[i+1].Key)
	}
	assert.Equal(t, "대한민국", Typed(plan))
}

func TestKeystrokes_ThinkingPauses(t *testing.T) {
	prof := DefaultTypingProfile()
	prof.TypoRate = 0
	prof.ThinkRate = 1

	plan := New(5).Keystrokes("ab", prof)
	require.Len(t, plan, 2)
	for _, k := range plan {
		assert.GreaterOrEqual(t, k.Delay, prof.KeyPause.Min+prof.ThinkPause.Min)
	}
}

func TestKeystrokes_Deterministic(t *testing.T) {
	a := New(11).Keystrokes("user@example.com", DefaultTypingProfile())
	b := New(11).Keystrokes("user@example.com", DefaultTypingProfile())
	assert.Equal(t, a, b)
}
