package markets

// service.go — listado de mercados con enriquecimiento de precios best-effort.
//
// A diferencia del pipeline de parlays (secuencial, all-or-nothing), el
// enriquecimiento del listado es concurrente y degradable: si el fetch de
// precios de un mercado falla, ese mercado sale sin precio en vez de tirar
// el listado completo.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/ports"
)

// Service lista mercados activos del venue y espeja su metadata en el
// storage local como tarea de background.
type Service struct {
	provider ports.MarketProvider
	prices   ports.PriceFeed
	syncer   ports.MarketSyncer // opcional; nil deshabilita el mirror
	workers  int

	syncErrs chan error
}

// New crea el Service. workers <= 0 usa runtime.NumCPU() × 2.
func New(provider ports.MarketProvider, prices ports.PriceFeed, syncer ports.MarketSyncer, workers int) *Service {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	return &Service{
		provider: provider,
		prices:   prices,
		syncer:   syncer,
		workers:  workers,
		syncErrs: make(chan error, 1),
	}
}

// SyncErrors expone los errores del mirror de background. Solo para
// observabilidad y tests; el request path nunca los espera.
func (s *Service) SyncErrors() <-chan error { return s.syncErrs }

// List devuelve los mercados activos enriquecidos con precios YES/NO.
// Dispara el mirror a storage como fire-and-forget.
func (s *Service) List(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.provider.FetchActiveMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("markets.List: %w", err)
	}

	s.fireSync(markets)
	s.enrichPrices(ctx, markets)

	return markets, nil
}

// Ticker devuelve best bid/ask/mid para un (mercado, resultado).
func (s *Service) Ticker(ctx context.Context, marketID string, outcomeIndex int) (domain.Ticker, error) {
	book, err := s.prices.GetOrderBook(ctx, marketID, outcomeIndex)
	if err != nil {
		return domain.Ticker{}, fmt.Errorf("markets.Ticker: %w", err)
	}
	return book.Ticker(), nil
}

// Book devuelve el orderbook de un (mercado, resultado).
func (s *Service) Book(ctx context.Context, marketID string, outcomeIndex int) (domain.OrderBook, error) {
	book, err := s.prices.GetOrderBook(ctx, marketID, outcomeIndex)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("markets.Book: %w", err)
	}
	return book, nil
}

// fireSync lanza el mirror de metadata sin bloquear ni propagar errores
// al request path. El contexto es independiente del request para que la
// respuesta HTTP no cancele el sync a medias.
func (s *Service) fireSync(markets []domain.Market) {
	if s.syncer == nil || len(markets) == 0 {
		return
	}
	go func() {
		if err := s.syncer.SyncMarkets(context.Background(), markets); err != nil {
			slog.Warn("background market sync failed", "err", err)
			select {
			case s.syncErrs <- err:
			default:
			}
		}
	}()
}

// enrichPrices completa YesPrice/NoPrice/odds con un worker pool acotado.
// Cada worker escribe solo en su índice — no hace falta mutex.
func (s *Service) enrichPrices(ctx context.Context, markets []domain.Market) {
	idxCh := make(chan int, len(markets))
	for i := range markets {
		idxCh <- i
	}
	close(idxCh)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				s.enrichOne(ctx, &markets[i])
			}
		}()
	}
	wg.Wait()
}

func (s *Service) enrichOne(ctx context.Context, m *domain.Market) {
	prices, err := s.prices.GetOutcomePrices(ctx, m.ID)
	if err != nil {
		// degradación: el mercado se lista sin precio
		slog.Debug("price enrichment failed", "market", m.ID, "err", err)
		return
	}

	for _, p := range prices {
		price, ok := p.BuyPrice()
		if !ok {
			continue
		}
		switch p.OutcomeIndex {
		case 0:
			m.YesPrice = domain.Float(price)
			m.YesOdds = domain.Float(1 / price)
		case 1:
			m.NoPrice = domain.Float(price)
			m.NoOdds = domain.Float(1 / price)
		}
	}

	// Mercado binario sin book explícito para NO: complemento del YES.
	if m.NoPrice == nil && m.YesPrice != nil {
		no := 1 - *m.YesPrice
		if no > 0 {
			m.NoPrice = domain.Float(no)
			m.NoOdds = domain.Float(1 / no)
		}
	}
}
