package promotion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hungtruong03/SAPromotion/internal/cache"
	"github.com/hungtruong03/SAPromotion/internal/codes"
	"github.com/hungtruong03/SAPromotion/internal/db"
	"github.com/hungtruong03/SAPromotion/internal/events"
	"github.com/hungtruong03/SAPromotion/internal/metrics"
	"github.com/hungtruong03/SAPromotion/internal/models"
	"github.com/hungtruong03/SAPromotion/internal/partner"
)

type fakePartner struct {
	mu    sync.Mutex
	calls []partner.RedeemRequest
	keys  []string
	err   error
	body  []byte
	// during runs inside the call, outside the lock; a non-nil result fails the call.
	during func(ctx context.Context, key string) error

	inFlight    int
	maxInFlight int
}

func (f *fakePartner) Redeem(ctx context.Context, key string, req partner.RedeemRequest) (*partner.RedeemResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.keys = append(f.keys, key)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	during, err, body := f.during, f.err, f.body
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()
	if during != nil {
		if errDuring := during(ctx, key); errDuring != nil {
			return nil, errDuring
		}
	}
	if err != nil {
		return nil, err
	}
	return &partner.RedeemResponse{StatusCode: 200, Body: body}, nil
}

func (f *fakePartner) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func (f *fakePartner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) byType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	svc       *Service
	store     *Store
	cache     *cache.MemoryCache
	partner   *fakePartner
	publisher *recordingPublisher
	clock     *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

func newTestEnvWith(t *testing.T, tune func(*Options)) *testEnv {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := NewStore(conn)
	mem := cache.NewMemory()
	m := metrics.Nop()
	allocator := codes.NewAllocator(mem, store, codes.Options{KeyPrefix: "promo:", Metrics: m})
	p := &fakePartner{}
	pub := &recordingPublisher{}
	clock := &testClock{now: time.Now().UTC()}
	opts := Options{
		KeyPrefix: "promo:",
		Publisher: pub,
		Metrics:   m,
		Now:       clock.Now,
	}
	if tune != nil {
		tune(&opts)
	}
	svc := NewService(store, mem, allocator, p, opts)
	return &testEnv{svc: svc, store: store, cache: mem, partner: p, publisher: pub, clock: clock}
}

func (e *testEnv) createType(t *testing.T, mutate func(*models.PromotionType)) *models.PromotionType {
	t.Helper()
	pt := &models.PromotionType{
		Name:          "Coffee 10k off",
		PartnerID:     3,
		DiscountType:  models.DiscountTypeFlat,
		DiscountValue: 10000,
	}
	if mutate != nil {
		mutate(pt)
	}
	if errCreate := e.store.CreateType(context.Background(), pt); errCreate != nil {
		t.Fatalf("create type: %v", errCreate)
	}
	return pt
}

func (e *testEnv) createPromotion(t *testing.T, typeID uint64, userID *uint64) *models.Promotion {
	t.Helper()
	p := &models.Promotion{TypeID: typeID, UserID: userID}
	if errCreate := e.store.CreatePromotion(context.Background(), p); errCreate != nil {
		t.Fatalf("create promotion: %v", errCreate)
	}
	return p
}

func uid(v uint64) *uint64 { return &v }

func (e *testEnv) reload(t *testing.T, id string) *models.Promotion {
	t.Helper()
	p, errGet := e.store.GetPromotion(context.Background(), id)
	if errGet != nil {
		t.Fatalf("reload %s: %v", id, errGet)
	}
	return p
}
