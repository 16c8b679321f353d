// Package codes allocates short human-enterable codes bound to promotion ids
// in the cache.
package codes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/cache"
	"github.com/hungtruong03/SAPromotion/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Alphabet is the set of symbols a code is drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// rejectAbove is the largest multiple of len(Alphabet) that fits in a byte;
// bytes at or above it are discarded so every symbol is equally likely.
const rejectAbove = 252

var (
	// ErrCodeNotFound is returned when a code is unknown or its binding expired.
	ErrCodeNotFound = errors.New("codes: code not found or expired")
	// ErrCodeSpaceExhausted is returned when every candidate collided.
	ErrCodeSpaceExhausted = errors.New("codes: no free code after max attempts")
	// ErrUnknownPromotion is returned when allocating for a promotion that does not exist.
	ErrUnknownPromotion = errors.New("codes: promotion not found")
)

// PromotionLookup reports whether a promotion exists.
type PromotionLookup interface {
	PromotionExists(ctx context.Context, id string) (bool, error)
}

// Options configures an Allocator.
type Options struct {
	KeyPrefix   string
	Length      int
	TTL         time.Duration
	MaxAttempts int
	Metrics     *metrics.Metrics
	Random      io.Reader // defaults to crypto/rand
}

// Allocator binds random codes to promotion ids.
type Allocator struct {
	cache       cache.Cache
	lookup      PromotionLookup
	prefix      string
	length      int
	ttl         time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
	random      io.Reader
}

// NewAllocator constructs an Allocator. Zero option values fall back to a
// 6-symbol code, a 30 minute binding and 50 attempts.
func NewAllocator(c cache.Cache, lookup PromotionLookup, opts Options) *Allocator {
	a := &Allocator{
		cache:       c,
		lookup:      lookup,
		prefix:      opts.KeyPrefix,
		length:      opts.Length,
		ttl:         opts.TTL,
		maxAttempts: opts.MaxAttempts,
		metrics:     opts.Metrics,
		random:      opts.Random,
	}
	if a.length <= 0 {
		a.length = 6
	}
	if a.ttl <= 0 {
		a.ttl = 1800 * time.Second
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = 50
	}
	if a.random == nil {
		a.random = rand.Reader
	}
	return a
}

// TTL returns the lifetime of a binding.
func (a *Allocator) TTL() time.Duration { return a.ttl }

func (a *Allocator) key(code string) string {
	return a.prefix + "code:" + code
}

// Allocate binds a fresh code to promotionID after checking the promotion
// exists. The binding is claimed with SETNX, so a collision with a live code
// simply draws another candidate.
func (a *Allocator) Allocate(ctx context.Context, promotionID string) (string, error) {
	if a.lookup != nil {
		exists, errLookup := a.lookup.PromotionExists(ctx, promotionID)
		if errLookup != nil {
			return "", fmt.Errorf("codes: lookup promotion: %w", errLookup)
		}
		if !exists {
			return "", ErrUnknownPromotion
		}
	}

	collisions := 0
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, errGen := a.generate()
		if errGen != nil {
			a.metrics.ObserveAllocation("error", collisions)
			return "", errGen
		}
		stored, errSet := a.cache.SetNX(ctx, a.key(code), promotionID, a.ttl)
		if errSet != nil {
			a.metrics.ObserveAllocation("error", collisions)
			return "", errSet
		}
		if stored {
			a.metrics.ObserveAllocation("success", collisions)
			return code, nil
		}
		collisions++
	}

	a.metrics.ObserveAllocation("exhausted", collisions)
	log.WithFields(log.Fields{
		"promotion_id": promotionID,
		"attempts":     a.maxAttempts,
	}).Warn("code allocation exhausted")
	return "", ErrCodeSpaceExhausted
}

// Resolve returns the promotion id bound to code.
func (a *Allocator) Resolve(ctx context.Context, code string) (string, error) {
	normalized := Normalize(code)
	if !Valid(normalized, a.length) {
		return "", ErrCodeNotFound
	}
	promotionID, errGet := a.cache.Get(ctx, a.key(normalized))
	if errors.Is(errGet, cache.ErrMiss) {
		return "", ErrCodeNotFound
	}
	if errGet != nil {
		return "", errGet
	}
	return promotionID, nil
}

// Release removes a binding so the code cannot be used again.
func (a *Allocator) Release(ctx context.Context, code string) error {
	return a.cache.Del(ctx, a.key(Normalize(code)))
}

func (a *Allocator) generate() (string, error) {
	out := make([]byte, 0, a.length)
	buf := make([]byte, a.length*2)
	for len(out) < a.length {
		if _, errRead := io.ReadFull(a.random, buf); errRead != nil {
			return "", fmt.Errorf("codes: generate: %w", errRead)
		}
		for _, b := range buf {
			if b >= rejectAbove {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == a.length {
				break
			}
		}
	}
	return string(out), nil
}

// Normalize trims and upper-cases user input.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the expected length and alphabet.
func Valid(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(Alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
