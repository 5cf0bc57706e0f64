package parlay

import (
	"context"
	"fmt"

	"github.com/parlayhub/parlayd/internal/domain"
)

// Quote es la cotización de un set de legs: precios usados, multiplicador
// combinado y payout esperado. Función pura del estado del feed al momento
// de la llamada; no tiene efectos secundarios.
type Quote struct {
	Legs           []domain.CalculatedLeg
	KTotal         float64
	ExpectedPayout float64
}

// CalculateOdds cotiza cada leg contra el PriceFeed y calcula el
// multiplicador del parlay: kTotal = Π 1/priceUsed.
//
// El precio usado es bestAsk con fallback a bestBid — todos los legs son
// compras. Los fetches son secuenciales: un fallo aborta la cotización
// completa (a diferencia del enriquecimiento best-effort del listado).
func (s *Service) CalculateOdds(ctx context.Context, legs []domain.LegRequest, stake float64) (Quote, error) {
	if len(legs) == 0 {
		return Quote{}, ErrEmptyParlay
	}
	if stake <= 0 {
		return Quote{}, ErrNonPositiveStake
	}

	calculated := make([]domain.CalculatedLeg, 0, len(legs))
	kTotal := 1.0

	for _, leg := range legs {
		price, err := s.buyPrice(ctx, leg.MarketID, leg.OutcomeIndex)
		if err != nil {
			return Quote{}, err
		}

		odds := 1 / price
		kTotal *= odds

		calculated = append(calculated, domain.CalculatedLeg{
			MarketID:     leg.MarketID,
			OutcomeIndex: leg.OutcomeIndex,
			PriceUsed:    price,
			Odds:         odds,
		})
	}

	return Quote{
		Legs:           calculated,
		KTotal:         kTotal,
		ExpectedPayout: stake * kTotal,
	}, nil
}

// buyPrice obtiene el precio de compra actual para un (mercado, resultado).
// Compartido por la cotización inicial y los re-checks de slippage.
func (s *Service) buyPrice(ctx context.Context, marketID string, outcomeIndex int) (float64, error) {
	prices, err := s.prices.GetOutcomePrices(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("parlay: fetch prices for market %s: %w", marketID, err)
	}

	for _, p := range prices {
		if p.OutcomeIndex != outcomeIndex {
			continue
		}
		price, ok := p.BuyPrice()
		if !ok {
			return 0, &InsufficientLiquidityError{MarketID: marketID, OutcomeIndex: outcomeIndex}
		}
		return price, nil
	}

	return 0, &NoPriceDataError{MarketID: marketID, OutcomeIndex: outcomeIndex}
}
