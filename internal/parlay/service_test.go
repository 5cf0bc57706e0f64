package parlay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/parlay"
)

// --- fakes ---

type fakePriceFeed struct {
	mu     sync.Mutex
	prices map[string][]domain.OutcomePrice // marketID → outcomes
	err    error
}

func (f *fakePriceFeed) GetOutcomePrices(_ context.Context, marketID string) ([]domain.OutcomePrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.prices[marketID], nil
}

func (f *fakePriceFeed) GetOrderBook(_ context.Context, marketID string, outcomeIndex int) (domain.OrderBook, error) {
	return domain.OrderBook{MarketID: marketID, OutcomeIndex: outcomeIndex}, nil
}

func (f *fakePriceFeed) setPrice(marketID string, outcomeIndex int, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.prices[marketID] {
		if p.OutcomeIndex == outcomeIndex {
			f.prices[marketID][i].BestAsk = domain.Float(price)
			return
		}
	}
	f.prices[marketID] = append(f.prices[marketID], domain.OutcomePrice{
		OutcomeIndex: outcomeIndex,
		BestAsk:      domain.Float(price),
	})
}

type fakeResolutionFeed struct {
	mu          sync.Mutex
	resolutions map[string]domain.MarketResolution
	err         error
	inFlight    int
	maxInFlight int
}

func (f *fakeResolutionFeed) GetResolutions(_ context.Context, marketIDs []string) ([]domain.MarketResolution, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(2 * time.Millisecond) // fuerza solapamiento entre llamadas concurrentes

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.MarketResolution, 0, len(marketIDs))
	for _, id := range marketIDs {
		if r, ok := f.resolutions[id]; ok {
			out = append(out, r)
		} else {
			out = append(out, domain.MarketResolution{MarketID: id})
		}
	}
	return out, nil
}

type fakePositionFeed struct {
	positions []domain.Position
	err       error
}

func (f *fakePositionFeed) GetPositions(_ context.Context, _ string, _ []string) ([]domain.Position, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.positions, nil
}

// memStore es un ParlayStore en memoria con la misma semántica CAS que el
// store real.
type memStore struct {
	mu      sync.Mutex
	parlays map[string]domain.Parlay
	snaps   map[string][]domain.OrderSnapshot
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{
		parlays: make(map[string]domain.Parlay),
		snaps:   make(map[string][]domain.OrderSnapshot),
	}
}

func (m *memStore) CreateParlay(_ context.Context, p domain.Parlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parlays[p.ID] = p
	return nil
}

func (m *memStore) GetParlay(_ context.Context, id string) (domain.Parlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parlays[id]
	if !ok {
		return domain.Parlay{}, domain.ErrParlayNotFound
	}
	return p, nil
}

func (m *memStore) UserParlays(_ context.Context, userAddress string) ([]domain.Parlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Parlay
	for _, p := range m.parlays {
		if p.UserAddress == userAddress {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UserParlaysByStatus(_ context.Context, userAddress string, status domain.ParlayStatus) ([]domain.Parlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Parlay
	for _, p := range m.parlays {
		if p.UserAddress == userAddress && p.Status == status {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdateParlayStatus(_ context.Context, id string, from, to domain.ParlayStatus, settlement *domain.Settlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parlays[id]
	if !ok {
		return false, domain.ErrParlayNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	if settlement != nil {
		payout := settlement.ActualPayout
		pnl := settlement.RealizedPnl
		resolvedAt := settlement.ResolvedAt
		p.ActualPayout = &payout
		p.RealizedPnl = &pnl
		p.ResolvedAt = &resolvedAt
	}
	m.parlays[id] = p
	return true, nil
}

func (m *memStore) SaveOrderSnapshot(_ context.Context, snap domain.OrderSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	snap.ID = m.nextID
	m.snaps[snap.ParlayID] = append(m.snaps[snap.ParlayID], snap)
	return snap.ID, nil
}

func (m *memStore) OrderSnapshots(_ context.Context, parlayID string) ([]domain.OrderSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[parlayID], nil
}

func (m *memStore) Close() error { return nil }

// fakeVenue acepta todo por defecto; failAt >= 0 rechaza la orden en esa
// posición.
type fakeVenue struct {
	mu        sync.Mutex
	submitted []domain.SignedOrder
	failAt    int
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{failAt: -1}
}

func (f *fakeVenue) SubmitOrder(_ context.Context, order domain.SignedOrder) (domain.VenueOrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt >= 0 && len(f.submitted) == f.failAt {
		return domain.VenueOrderResult{}, errors.New("venue rejected order")
	}
	f.submitted = append(f.submitted, order)
	return domain.VenueOrderResult{
		OrderID: "ord-" + order.Market,
		Status:  "live",
		Raw:     `{"success":true}`,
	}, nil
}

// --- helpers ---

type testEnv struct {
	svc         *parlay.Service
	prices      *fakePriceFeed
	resolutions *fakeResolutionFeed
	positions   *fakePositionFeed
	store       *memStore
	venue       *fakeVenue
}

func newTestEnv() *testEnv {
	env := &testEnv{
		prices:      &fakePriceFeed{prices: make(map[string][]domain.OutcomePrice)},
		resolutions: &fakeResolutionFeed{resolutions: make(map[string]domain.MarketResolution)},
		positions:   &fakePositionFeed{},
		store:       newMemStore(),
		venue:       newFakeVenue(),
	}
	env.svc = parlay.New(parlay.DefaultConfig(), env.prices, env.resolutions, env.positions, env.store, env.venue)
	return env
}

func legReqs(marketIDs ...string) []domain.LegRequest {
	legs := make([]domain.LegRequest, len(marketIDs))
	for i, id := range marketIDs {
		legs[i] = domain.LegRequest{MarketID: id, OutcomeIndex: 0}
	}
	return legs
}

const testUser = "0xAbC0000000000000000000000000000000000001"

// --- tests ---

func TestCreateParlay_TwoLegs(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	env.prices.setPrice("m2", 0, 0.4)

	result, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1", "m2"), 0)
	require.NoError(t, err)

	// odds: 1/0.5 = 2, 1/0.4 = 2.5 → kTotal = 5
	assert.InDelta(t, 5.0, result.Parlay.KTotal, 1e-9)
	assert.InDelta(t, 500.0, result.Parlay.ExpectedPayout, 1e-9)
	assert.Equal(t, domain.StatusPendingSignature, result.Parlay.Status)
	assert.Equal(t, 300, result.Parlay.MaxSlippageBps, "default de config")

	require.Len(t, result.Parlay.Legs, 2)
	for _, leg := range result.Parlay.Legs {
		assert.InDelta(t, 100.0, leg.Size, 1e-9, "cada leg lleva el stake completo")
	}

	require.Len(t, result.Orders, 2)
	for i, order := range result.Orders {
		assert.Equal(t, domain.SideBuy, order.Side)
		assert.Equal(t, testUser, order.Maker)
		assert.InDelta(t, 100.0, order.Size, 1e-9)
		if i > 0 {
			assert.NotEqual(t, result.Orders[i-1].Nonce, order.Nonce)
		}
	}

	// persistido
	stored, err := env.store.GetParlay(context.Background(), result.Parlay.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingSignature, stored.Status)
}

func TestCreateParlay_ExtremePriceRejected(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.995)

	_, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 0)

	var extreme *parlay.ExtremePriceError
	require.ErrorAs(t, err, &extreme)
	assert.Equal(t, "m1", extreme.MarketID)
}

func TestCreateParlay_LowPriceRejected(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.005)

	_, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 0)

	var extreme *parlay.ExtremePriceError
	require.ErrorAs(t, err, &extreme)
}

func TestCreateParlay_StakeTooSmallForLegCount(t *testing.T) {
	env := newTestEnv()
	markets := []string{"m1", "m2", "m3", "m4", "m5", "m6"}
	for _, id := range markets {
		env.prices.setPrice(id, 0, 0.5)
	}

	// 20 / 6 legs = 3.33 < mínimo 5
	_, err := env.svc.CreateParlay(context.Background(), testUser, 20, legReqs(markets...), 0)

	var tooSmall *parlay.BelowMinimumOrderSizeError
	require.ErrorAs(t, err, &tooSmall)
	assert.InDelta(t, 20.0/6.0, tooSmall.PerLegStake, 1e-9)
}

func TestCreateParlay_InputGuards(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	ctx := context.Background()

	_, err := env.svc.CreateParlay(ctx, "", 100, legReqs("m1"), 0)
	assert.ErrorIs(t, err, parlay.ErrMissingAddress)

	_, err = env.svc.CreateParlay(ctx, testUser, 100, nil, 0)
	assert.ErrorIs(t, err, parlay.ErrEmptyParlay)

	_, err = env.svc.CreateParlay(ctx, testUser, 0, legReqs("m1"), 0)
	assert.ErrorIs(t, err, parlay.ErrNonPositiveStake)

	_, err = env.svc.CreateParlay(ctx, testUser, -5, legReqs("m1"), 0)
	assert.ErrorIs(t, err, parlay.ErrNonPositiveStake)

	_, err = env.svc.CreateParlay(ctx, testUser, 100, legReqs("m1", "m2", "m3", "m4", "m5", "m6", "m7"), 0)
	assert.ErrorIs(t, err, parlay.ErrTooManyLegs)

	// ningún guard debe haber persistido nada
	parlays, err := env.svc.UserParlays(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, parlays)
}

func TestCreateParlay_NoPriceData(t *testing.T) {
	env := newTestEnv()
	env.prices.setPrice("m1", 0, 0.5)
	// m2 sin entrada para outcome 1
	env.prices.setPrice("m2", 0, 0.4)

	legs := []domain.LegRequest{
		{MarketID: "m1", OutcomeIndex: 0},
		{MarketID: "m2", OutcomeIndex: 1},
	}
	_, err := env.svc.CreateParlay(context.Background(), testUser, 100, legs, 0)

	var noData *parlay.NoPriceDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, "m2", noData.MarketID)
	assert.Equal(t, 1, noData.OutcomeIndex)
}

func TestCreateParlay_InsufficientLiquidity(t *testing.T) {
	env := newTestEnv()
	// el outcome existe pero sin precio usable en ningún lado del book
	env.prices.prices["m1"] = []domain.OutcomePrice{{OutcomeIndex: 0}}

	_, err := env.svc.CreateParlay(context.Background(), testUser, 100, legReqs("m1"), 0)

	var noLiq *parlay.InsufficientLiquidityError
	require.ErrorAs(t, err, &noLiq)
}

func TestCalculateOdds_BidFallback(t *testing.T) {
	env := newTestEnv()
	env.prices.prices["m1"] = []domain.OutcomePrice{
		{OutcomeIndex: 0, BestBid: domain.Float(0.25)}, // sin ask
	}

	quote, err := env.svc.CalculateOdds(context.Background(), legReqs("m1"), 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, quote.Legs[0].PriceUsed, 1e-9)
	assert.InDelta(t, 4.0, quote.KTotal, 1e-9)
}

func TestGetParlay_NotFound(t *testing.T) {
	env := newTestEnv()
	_, _, err := env.svc.GetParlay(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrParlayNotFound)
}
