// Package suggest produces short pairing-suggestion texts for an order.
// The real generator is an external collaborator; everything here exists to
// make sure its latency or failure can never affect order placement.
package suggest

import (
	"context"
	"hash/fnv"
	"time"
)

// Item is a (name, quantity) pair describing one ordered line.
type Item struct {
	Name     string
	Quantity int
}

// Suggester produces a short pairing suggestion for the given items.
type Suggester interface {
	Suggest(ctx context.Context, items []Item) (string, error)
}

// fallbacks are the canned suggestions used when no generator is available
// or the generator fails.
var fallbacks = []string{
	"A glass of mint lemonade goes well with this.",
	"Pair it with masala chai for a warm finish.",
	"A side of garden salad rounds this off nicely.",
	"Finish with kheer if you still have room.",
}

// Static always returns a canned suggestion, picked deterministically from
// the item names so repeated calls for the same cart agree.
type Static struct{}

func (Static) Suggest(_ context.Context, items []Item) (string, error) {
	h := fnv.New32a()
	for _, it := range items {
		_, _ = h.Write([]byte(it.Name))
	}
	return fallbacks[h.Sum32()%uint32(len(fallbacks))], nil
}

// Bounded wraps a Suggester with a hard timeout and a canned fallback. The
// wrapped call runs in its own goroutine; if it errors or outlives the
// timeout, a Static suggestion is returned instead and the slow result is
// discarded.
type Bounded struct {
	inner    Suggester
	timeout  time.Duration
	fallback Static
}

// NewBounded wraps inner with the given timeout.
func NewBounded(inner Suggester, timeout time.Duration) *Bounded {
	return &Bounded{inner: inner, timeout: timeout}
}

func (b *Bounded) Suggest(ctx context.Context, items []Item) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := b.inner.Suggest(ctx, items)
		ch <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return b.fallback.Suggest(context.Background(), items)
	case res := <-ch:
		if res.err != nil || res.text == "" {
			return b.fallback.Suggest(context.Background(), items)
		}
		return res.text, nil
	}
}
