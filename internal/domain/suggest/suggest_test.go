package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSuggester struct {
	text  string
	err   error
	delay time.Duration
}

func (s *stubSuggester) Suggest(ctx context.Context, _ []Item) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

func TestStatic_Deterministic(t *testing.T) {
	items := []Item{{Name: "Biryani", Quantity: 2}, {Name: "Raita", Quantity: 1}}

	first, err := Static{}.Suggest(context.Background(), items)
	require.NoError(t, err)
	second, err := Static{}.Suggest(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestStatic_AlwaysCanned(t *testing.T) {
	// Sweep a range of carts so every hash residue is exercised; the pick
	// must always land on a canned suggestion.
	names := []string{"Thali", "Dosa", "Idli", "Kheer", "Chai", "Lassi", "Raita", "Biryani"}
	for i, name := range names {
		items := []Item{{Name: name, Quantity: 1}, {Name: names[(i+3)%len(names)], Quantity: 2}}
		got, err := Static{}.Suggest(context.Background(), items)
		require.NoError(t, err)
		assert.Contains(t, fallbacks, got)
	}
}

func TestBounded_PassesThrough(t *testing.T) {
	b := NewBounded(&stubSuggester{text: "try the lassi"}, time.Second)

	got, err := b.Suggest(context.Background(), []Item{{Name: "Biryani", Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, "try the lassi", got)
}

func TestBounded_FallbackOnError(t *testing.T) {
	b := NewBounded(&stubSuggester{err: errors.New("generator down")}, time.Second)

	got, err := b.Suggest(context.Background(), []Item{{Name: "Biryani", Quantity: 1}})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestBounded_FallbackOnTimeout(t *testing.T) {
	b := NewBounded(&stubSuggester{text: "too late", delay: time.Second}, 10*time.Millisecond)

	start := time.Now()
	got, err := b.Suggest(context.Background(), []Item{{Name: "Biryani", Quantity: 1}})
	require.NoError(t, err)
	assert.NotEqual(t, "too late", got)
	assert.NotEmpty(t, got)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
