package markets_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/markets"
)

// --- fakes ---

type fakeProvider struct {
	markets []domain.Market
	err     error
}

func (f *fakeProvider) FetchActiveMarkets(_ context.Context) ([]domain.Market, error) {
	return f.markets, f.err
}

type fakeFeed struct {
	mu     sync.Mutex
	prices map[string][]domain.OutcomePrice
	books  map[string]domain.OrderBook
	errFor map[string]error
}

func (f *fakeFeed) GetOutcomePrices(_ context.Context, marketID string) ([]domain.OutcomePrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor[marketID]; err != nil {
		return nil, err
	}
	return f.prices[marketID], nil
}

func (f *fakeFeed) GetOrderBook(_ context.Context, marketID string, outcomeIndex int) (domain.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor[marketID]; err != nil {
		return domain.OrderBook{}, err
	}
	book := f.books[marketID]
	book.MarketID = marketID
	book.OutcomeIndex = outcomeIndex
	return book, nil
}

type fakeSyncer struct {
	mu     sync.Mutex
	synced []domain.Market
	err    error
	done   chan struct{}
}

func (f *fakeSyncer) SyncMarkets(_ context.Context, ms []domain.Market) error {
	f.mu.Lock()
	f.synced = ms
	f.mu.Unlock()
	close(f.done)
	return f.err
}

// --- tests ---

func TestList_EnrichesPrices(t *testing.T) {
	provider := &fakeProvider{markets: []domain.Market{
		{ID: "m1", Question: "A", Status: "open"},
		{ID: "m2", Question: "B", Status: "open"},
	}}
	feed := &fakeFeed{prices: map[string][]domain.OutcomePrice{
		"m1": {
			{OutcomeIndex: 0, BestAsk: domain.Float(0.60)},
			{OutcomeIndex: 1, BestAsk: domain.Float(0.42)},
		},
		"m2": {
			{OutcomeIndex: 0, BestAsk: domain.Float(0.25)},
		},
	}}

	svc := markets.New(provider, feed, nil, 2)
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	m1 := list[0]
	require.NotNil(t, m1.YesPrice)
	assert.InDelta(t, 0.60, *m1.YesPrice, 1e-9)
	require.NotNil(t, m1.YesOdds)
	assert.InDelta(t, 1/0.60, *m1.YesOdds, 1e-9)
	require.NotNil(t, m1.NoPrice)
	assert.InDelta(t, 0.42, *m1.NoPrice, 1e-9)

	// sin book de NO: complemento del YES
	m2 := list[1]
	require.NotNil(t, m2.NoPrice)
	assert.InDelta(t, 0.75, *m2.NoPrice, 1e-9)
}

func TestList_DegradesOnPriceError(t *testing.T) {
	provider := &fakeProvider{markets: []domain.Market{
		{ID: "m1", Status: "open"},
		{ID: "m2", Status: "open"},
	}}
	feed := &fakeFeed{
		prices: map[string][]domain.OutcomePrice{
			"m2": {{OutcomeIndex: 0, BestAsk: domain.Float(0.5)}},
		},
		errFor: map[string]error{"m1": errors.New("book unavailable")},
	}

	svc := markets.New(provider, feed, nil, 2)
	list, err := svc.List(context.Background())
	require.NoError(t, err, "un fallo de precio no tira el listado")
	require.Len(t, list, 2)

	assert.Nil(t, list[0].YesPrice, "el mercado fallido se lista sin precio")
	assert.NotNil(t, list[1].YesPrice)
}

func TestList_ProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("gamma down")}
	svc := markets.New(provider, &fakeFeed{}, nil, 1)

	_, err := svc.List(context.Background())
	assert.Error(t, err)
}

func TestList_FiresBackgroundSync(t *testing.T) {
	provider := &fakeProvider{markets: []domain.Market{{ID: "m1", Status: "open"}}}
	syncer := &fakeSyncer{done: make(chan struct{})}

	svc := markets.New(provider, &fakeFeed{}, syncer, 1)
	_, err := svc.List(context.Background())
	require.NoError(t, err)

	select {
	case <-syncer.done:
	case <-time.After(2 * time.Second):
		t.Fatal("el sync de background nunca se disparó")
	}

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	require.Len(t, syncer.synced, 1)
	assert.Equal(t, "m1", syncer.synced[0].ID)
}

func TestList_SyncErrorDoesNotFailRequest(t *testing.T) {
	provider := &fakeProvider{markets: []domain.Market{{ID: "m1", Status: "open"}}}
	syncer := &fakeSyncer{done: make(chan struct{}), err: errors.New("disk full")}

	svc := markets.New(provider, &fakeFeed{}, syncer, 1)
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// el error queda disponible por el canal de observabilidad
	select {
	case err := <-svc.SyncErrors():
		assert.ErrorContains(t, err, "disk full")
	case <-time.After(2 * time.Second):
		t.Fatal("el error del sync nunca llegó al canal")
	}
}

func TestTicker(t *testing.T) {
	feed := &fakeFeed{books: map[string]domain.OrderBook{
		"m1": {
			Bids: []domain.BookEntry{{Price: 0.48, Size: 100}},
			Asks: []domain.BookEntry{{Price: 0.52, Size: 100}},
		},
	}}

	svc := markets.New(&fakeProvider{}, feed, nil, 1)
	ticker, err := svc.Ticker(context.Background(), "m1", 0)
	require.NoError(t, err)

	require.NotNil(t, ticker.BestBid)
	assert.InDelta(t, 0.48, *ticker.BestBid, 1e-9)
	require.NotNil(t, ticker.MidPrice)
	assert.InDelta(t, 0.50, *ticker.MidPrice, 1e-9)
}
