package usecase

import (
	"context"
	"sync"

	"adcp-engine/internal/core/domain"
	"adcp-engine/internal/core/port"
)

// fakeRepo is an in-memory MediaBuyRepository. Updates to the same buy hold
// a per-buy mutex, mirroring the row lock of the real implementation.
type fakeRepo struct {
	mu    sync.Mutex
	buys  map[string]*domain.MediaBuy // keyed by external media_buy_id
	locks map[string]*sync.Mutex

	sums         port.DeliverySums  // full-history aggregation
	scopedSums   *port.DeliverySums // returned for bounded windows when set
	sumsErr      error
	breakdown    port.DeliveryBreakdown
	cacheWrites  int
	cachedTotals domain.DeliveryTotals
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		buys:  map[string]*domain.MediaBuy{},
		locks: map[string]*sync.Mutex{},
	}
}

func (r *fakeRepo) CreateMediaBuy(_ context.Context, buy *domain.MediaBuy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneBuy(buy)
	r.buys[buy.MediaBuyID] = cp
	r.locks[buy.MediaBuyID] = &sync.Mutex{}
	return nil
}

func (r *fakeRepo) GetMediaBuy(_ context.Context, mediaBuyID, principalID string) (*domain.MediaBuy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buy, ok := r.buys[mediaBuyID]
	if !ok || buy.PrincipalID != principalID {
		return nil, domain.ErrMediaBuyNotFound
	}
	return cloneBuy(buy), nil
}

func (r *fakeRepo) UpdateMediaBuy(_ context.Context, mediaBuyID, principalID string, apply func(*domain.MediaBuy) error) (*domain.MediaBuy, error) {
	r.mu.Lock()
	buy, ok := r.buys[mediaBuyID]
	if !ok || buy.PrincipalID != principalID {
		r.mu.Unlock()
		return nil, domain.ErrMediaBuyNotFound
	}
	lock := r.locks[mediaBuyID]
	r.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	working := cloneBuy(r.buys[mediaBuyID])
	r.mu.Unlock()

	if err := apply(working); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.buys[mediaBuyID] = cloneBuy(working)
	r.mu.Unlock()
	return working, nil
}

func (r *fakeRepo) SumDelivery(_ context.Context, _ string, window port.Window) (port.DeliverySums, error) {
	if r.sumsErr != nil {
		return port.DeliverySums{}, r.sumsErr
	}
	if (!window.From.IsZero() || !window.To.IsZero()) && r.scopedSums != nil {
		return *r.scopedSums, nil
	}
	return r.sums, nil
}

func (r *fakeRepo) DeliveryBreakdown(context.Context, string, port.Window) (*port.DeliveryBreakdown, error) {
	bd := r.breakdown
	return &bd, nil
}

func (r *fakeRepo) RefreshDeliveryCache(_ context.Context, _ string, totals domain.DeliveryTotals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheWrites++
	r.cachedTotals = totals
	return nil
}

func cloneBuy(buy *domain.MediaBuy) *domain.MediaBuy {
	cp := *buy
	cp.Packages = make([]domain.Package, len(buy.Packages))
	copy(cp.Packages, buy.Packages)
	return &cp
}

type fakeCatalog struct {
	products map[string]domain.Product
	err      error
}

func (c *fakeCatalog) GetProducts(_ context.Context, _ string, productIDs []string) (map[string]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := map[string]domain.Product{}
	for _, id := range productIDs {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeAudiences struct {
	audiences map[string]domain.MatchedAudience
}

func (a *fakeAudiences) GetAudiences(_ context.Context, segmentIDs []string) (map[string]domain.MatchedAudience, error) {
	out := map[string]domain.MatchedAudience{}
	for _, id := range segmentIDs {
		if aud, ok := a.audiences[id]; ok {
			out[id] = aud
		}
	}
	return out, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (a *fakeAudit) Record(_ context.Context, entry domain.AuditEntry) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) byStatus(status string) []domain.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range a.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}
