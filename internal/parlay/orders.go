package parlay

// orders.go — construcción de órdenes sin firmar con protección de slippage.
//
// Este es el segundo check de precio, y el que realmente gatea la ejecución:
// entre la cotización y la firma del usuario puede pasar tiempo arbitrario.

import (
	"context"
	"math"
	"time"

	"github.com/parlayhub/parlayd/internal/domain"
)

// buildOrders re-cotiza cada leg y emite una orden BUY sin firmar por leg.
// Si cualquier leg excede la tolerancia de slippage, el build completo se
// aborta: las órdenes ya construidas en la misma llamada se descartan.
func (s *Service) buildOrders(ctx context.Context, legs []domain.CalculatedLeg, stake float64,
	userAddress string, maxSlippageBps int) ([]domain.UnsignedOrder, error) {

	now := time.Now()
	expiration := now.Add(s.cfg.OrderTTL).Unix()
	nonceBase := now.UnixMilli()

	orders := make([]domain.UnsignedOrder, 0, len(legs))

	for i, leg := range legs {
		current, err := s.buyPrice(ctx, leg.MarketID, leg.OutcomeIndex)
		if err != nil {
			return nil, err
		}

		if exceedsSlippage(leg.PriceUsed, current, maxSlippageBps) {
			return nil, &PriceMovedError{
				MarketID:       leg.MarketID,
				OldPrice:       leg.PriceUsed,
				NewPrice:       current,
				MaxSlippageBps: maxSlippageBps,
			}
		}

		orders = append(orders, domain.UnsignedOrder{
			Market:     leg.MarketID,
			Outcome:    leg.OutcomeIndex,
			Side:       domain.SideBuy,
			Price:      current, // la orden usa el precio re-cotizado, no el de la quote
			Size:       stake,
			Maker:      userAddress,
			Expiration: expiration,
			Nonce:      nonceBase + int64(i), // único dentro del build
		})
	}

	return orders, nil
}

// exceedsSlippage devuelve true si |current − reference| supera la
// tolerancia: (maxSlippageBps/10_000) × reference.
func exceedsSlippage(reference, current float64, maxSlippageBps int) bool {
	diff := math.Abs(current - reference)
	allowed := float64(maxSlippageBps) / 10_000 * reference
	return diff > allowed
}
