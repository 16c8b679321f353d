package codes

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/cache"
	"github.com/hungtruong03/SAPromotion/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubLookup map[string]bool

func (s stubLookup) PromotionExists(_ context.Context, id string) (bool, error) {
	return s[id], nil
}

// cycleReader returns the given blocks in order, one block per Read call.
type cycleReader struct {
	blocks [][]byte
	next   int
}

func (r *cycleReader) Read(p []byte) (int, error) {
	block := r.blocks[r.next%len(r.blocks)]
	r.next++
	n := copy(p, block)
	return n, nil
}

func repeated(b byte, n int) []byte { return bytes.Repeat([]byte{b}, n) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestAllocateThenResolve(t *testing.T) {
	a := NewAllocator(cache.NewMemory(), stubLookup{"p-1": true}, Options{KeyPrefix: "promo:"})
	ctx := context.Background()

	code, errAlloc := a.Allocate(ctx, "p-1")
	if errAlloc != nil {
		t.Fatalf("allocate: %v", errAlloc)
	}
	if !Valid(code, 6) {
		t.Fatalf("unexpected code shape %q", code)
	}
	got, errResolve := a.Resolve(ctx, code)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if got != "p-1" {
		t.Fatalf("expected p-1, got %q", got)
	}
}

func TestResolveAfterTTLIsAbsent(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	a := NewAllocator(cache.NewMemoryWithClock(clk.Now), stubLookup{"p-1": true}, Options{})
	ctx := context.Background()

	code, errAlloc := a.Allocate(ctx, "p-1")
	if errAlloc != nil {
		t.Fatalf("allocate: %v", errAlloc)
	}
	clk.Advance(1799 * time.Second)
	if _, errResolve := a.Resolve(ctx, code); errResolve != nil {
		t.Fatalf("expected live binding before ttl, got %v", errResolve)
	}
	clk.Advance(time.Second)
	if _, errResolve := a.Resolve(ctx, code); !errors.Is(errResolve, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound after ttl, got %v", errResolve)
	}
}

func TestResolveNormalizesInput(t *testing.T) {
	a := NewAllocator(cache.NewMemory(), nil, Options{
		Random: &cycleReader{blocks: [][]byte{repeated(1, 12)}},
	})
	ctx := context.Background()
	code, errAlloc := a.Allocate(ctx, "p-1")
	if errAlloc != nil {
		t.Fatalf("allocate: %v", errAlloc)
	}
	if code != "BBBBBB" {
		t.Fatalf("expected BBBBBB, got %q", code)
	}
	if got, errResolve := a.Resolve(ctx, "  bbbbbb "); errResolve != nil || got != "p-1" {
		t.Fatalf("expected normalized lookup to hit, got %q err=%v", got, errResolve)
	}
}

func TestResolveRejectsMalformedCodes(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()
	// A binding under a malformed key is never consulted.
	if _, errSet := store.SetNX(ctx, "code:AB-12", "p-1", time.Hour); errSet != nil {
		t.Fatalf("seed: %v", errSet)
	}
	a := NewAllocator(store, nil, Options{})
	for _, code := range []string{"", "   ", "AB-12", "ABCDE", "ABCDEFG", "ABC$EF"} {
		if _, errResolve := a.Resolve(ctx, code); !errors.Is(errResolve, ErrCodeNotFound) {
			t.Fatalf("code %q: expected ErrCodeNotFound, got %v", code, errResolve)
		}
	}
}

func TestAllocateRetriesOnCollision(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := cache.NewMemory()
	ctx := context.Background()
	if _, errSet := store.SetNX(ctx, "code:AAAAAA", "other", time.Hour); errSet != nil {
		t.Fatalf("seed: %v", errSet)
	}

	a := NewAllocator(store, nil, Options{
		Metrics: m,
		Random:  &cycleReader{blocks: [][]byte{repeated(0, 12), repeated(1, 12)}},
	})
	code, errAlloc := a.Allocate(ctx, "p-2")
	if errAlloc != nil {
		t.Fatalf("allocate: %v", errAlloc)
	}
	if code != "BBBBBB" {
		t.Fatalf("expected retry to yield BBBBBB, got %q", code)
	}
	if got, _ := store.Get(ctx, "code:AAAAAA"); got != "other" {
		t.Fatalf("existing binding must be untouched, got %q", got)
	}
	if got := testutil.ToFloat64(m.CodeCollisions); got != 1 {
		t.Fatalf("expected 1 collision, got %v", got)
	}
}

func TestAllocateExhausted(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()
	if _, errSet := store.SetNX(ctx, "code:AAAAAA", "other", time.Hour); errSet != nil {
		t.Fatalf("seed: %v", errSet)
	}
	a := NewAllocator(store, nil, Options{
		MaxAttempts: 5,
		Random:      &cycleReader{blocks: [][]byte{repeated(0, 12)}},
	})
	if _, errAlloc := a.Allocate(ctx, "p-3"); !errors.Is(errAlloc, ErrCodeSpaceExhausted) {
		t.Fatalf("expected ErrCodeSpaceExhausted, got %v", errAlloc)
	}
}

func TestAllocateUnknownPromotion(t *testing.T) {
	a := NewAllocator(cache.NewMemory(), stubLookup{}, Options{})
	if _, errAlloc := a.Allocate(context.Background(), "missing"); !errors.Is(errAlloc, ErrUnknownPromotion) {
		t.Fatalf("expected ErrUnknownPromotion, got %v", errAlloc)
	}
}

func TestGenerateRejectsBiasedBytes(t *testing.T) {
	block := append(repeated(255, 6), repeated(2, 6)...)
	a := NewAllocator(cache.NewMemory(), nil, Options{
		Random: &cycleReader{blocks: [][]byte{block}},
	})
	code, errGen := a.generate()
	if errGen != nil {
		t.Fatalf("generate: %v", errGen)
	}
	if code != "CCCCCC" {
		t.Fatalf("expected bytes >= 252 to be skipped, got %q", code)
	}
}

func TestGeneratedCodesAreDistinct(t *testing.T) {
	a := NewAllocator(cache.NewMemory(), nil, Options{})
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		code, errAlloc := a.Allocate(context.Background(), "p")
		if errAlloc != nil {
			t.Fatalf("allocate: %v", errAlloc)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("live code %q allocated twice", code)
		}
		seen[code] = struct{}{}
	}
}
