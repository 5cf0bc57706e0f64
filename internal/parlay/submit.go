package parlay

// submit.go — envío secuencial de órdenes firmadas con semántica
// all-or-nothing a nivel de parlay.
//
// Los legs se procesan estrictamente en orden: enviar el leg i+1 antes de
// registrar el resultado del leg i rompería el audit trail. Si un leg falla,
// el parlay entero pasa a failed y no se procesan más legs — las órdenes ya
// enviadas de legs anteriores quedan en el venue (limitación conocida: este
// sistema no intenta cancelación venue-side).

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/ports"
)

// SubmitResult es la salida de SubmitOrders: status final del parlay y los
// snapshots registrados (uno por leg intentado).
type SubmitResult struct {
	ParlayID  string
	Status    domain.ParlayStatus
	Submitted int
	Snapshots []domain.OrderSnapshot
}

// SubmitOrders envía las órdenes firmadas al venue, emparejadas
// posicionalmente con los legs persistidos del parlay.
func (s *Service) SubmitOrders(ctx context.Context, parlayID string, orders []domain.SignedOrder) (SubmitResult, error) {
	p, err := s.store.GetParlay(ctx, parlayID)
	if err != nil {
		return SubmitResult{}, err
	}

	if p.Status != domain.StatusPendingSignature {
		return SubmitResult{}, &InvalidParlayStateError{
			ParlayID: parlayID,
			Status:   p.Status,
			Want:     domain.StatusPendingSignature,
		}
	}

	if len(orders) != len(p.Legs) {
		return SubmitResult{}, &OrderCountMismatchError{Orders: len(orders), Legs: len(p.Legs)}
	}

	// Check de slippage contra el priceUsed persistido, antes de enviar nada.
	// El tiempo entre quote, build y firma puede ser arbitrariamente largo.
	if err := s.checkStoredSlippage(ctx, p); err != nil {
		return SubmitResult{}, err
	}

	result := SubmitResult{ParlayID: parlayID, Status: p.Status}

	for i, leg := range p.Legs {
		order := orders[i]

		venueRes, submitErr := s.venue.SubmitOrder(ctx, order)
		snap := domain.OrderSnapshot{
			ParlayID:  parlayID,
			MarketID:  leg.MarketID,
			Side:      order.Side,
			Price:     order.Price,
			Size:      order.Size,
			CreatedAt: time.Now().UTC(),
		}

		if submitErr != nil {
			snap.Status = domain.OrderStatusFailed
			snap.Raw = fmt.Sprintf(`{"error":%q}`, submitErr.Error())
			if _, err := s.store.SaveOrderSnapshot(ctx, snap); err != nil {
				slog.Error("failed to record order snapshot", "parlay_id", parlayID, "leg", i, "err", err)
			}
			result.Snapshots = append(result.Snapshots, snap)

			if _, err := s.store.UpdateParlayStatus(ctx, parlayID,
				domain.StatusPendingSignature, domain.StatusFailed, nil); err != nil {
				slog.Error("failed to mark parlay failed", "parlay_id", parlayID, "err", err)
			}
			result.Status = domain.StatusFailed

			slog.Warn("order submission failed, parlay marked failed",
				"parlay_id", parlayID,
				"leg", i,
				"market", leg.MarketID,
				"submitted_before_failure", result.Submitted,
			)

			return result, &SubmissionFailedError{
				ParlayID: parlayID,
				LegIndex: i,
				MarketID: leg.MarketID,
				Err:      submitErr,
			}
		}

		snap.Status = domain.OrderStatusPending
		snap.VenueOrderID = venueRes.OrderID
		snap.Raw = venueRes.Raw
		if _, err := s.store.SaveOrderSnapshot(ctx, snap); err != nil {
			slog.Error("failed to record order snapshot", "parlay_id", parlayID, "leg", i, "err", err)
		}
		result.Snapshots = append(result.Snapshots, snap)
		result.Submitted++
	}

	applied, err := s.store.UpdateParlayStatus(ctx, parlayID,
		domain.StatusPendingSignature, domain.StatusActive, nil)
	if err != nil {
		return result, fmt.Errorf("parlay.SubmitOrders: activate: %w", err)
	}
	if !applied {
		// Otra llamada mutó el status en paralelo; reportamos el estado real.
		current, err := s.store.GetParlay(ctx, parlayID)
		if err != nil {
			return result, err
		}
		result.Status = current.Status
		return result, nil
	}

	result.Status = domain.StatusActive
	slog.Info("parlay activated", "parlay_id", parlayID, "orders", result.Submitted)
	return result, nil
}

// checkStoredSlippage re-verifica cada leg contra su priceUsed persistido.
// Legs sin datos de precio en el feed se saltan: la ausencia de book no es
// evidencia de drift y el venue hará su propia validación al recibir la orden.
func (s *Service) checkStoredSlippage(ctx context.Context, p domain.Parlay) error {
	for _, leg := range p.Legs {
		current, err := s.buyPrice(ctx, leg.MarketID, leg.OutcomeIndex)
		if err != nil {
			var noData *NoPriceDataError
			var noLiq *InsufficientLiquidityError
			if errors.As(err, &noData) || errors.As(err, &noLiq) {
				slog.Debug("skipping slippage check, no price data",
					"parlay_id", p.ID, "market", leg.MarketID)
				continue
			}
			return err
		}

		if exceedsSlippage(leg.PriceUsed, current, p.MaxSlippageBps) {
			return &MarketMovedError{
				MarketID:       leg.MarketID,
				OldPrice:       leg.PriceUsed,
				NewPrice:       current,
				MaxSlippageBps: p.MaxSlippageBps,
			}
		}
	}
	return nil
}

// SignAndSubmit reconstruye las órdenes del parlay desde sus legs
// persistidos, las firma con el signer local y las envía. Camino alternativo
// para despliegues server-side donde la firma no pasa por la wallet del
// usuario.
func (s *Service) SignAndSubmit(ctx context.Context, parlayID string, signer ports.OrderSigner) (SubmitResult, error) {
	p, err := s.store.GetParlay(ctx, parlayID)
	if err != nil {
		return SubmitResult{}, err
	}
	if p.Status != domain.StatusPendingSignature {
		return SubmitResult{}, &InvalidParlayStateError{
			ParlayID: parlayID,
			Status:   p.Status,
			Want:     domain.StatusPendingSignature,
		}
	}

	legs := make([]domain.CalculatedLeg, len(p.Legs))
	for i, l := range p.Legs {
		legs[i] = domain.CalculatedLeg{
			MarketID:     l.MarketID,
			OutcomeIndex: l.OutcomeIndex,
			PriceUsed:    l.PriceUsed,
			Odds:         1 / l.PriceUsed,
		}
	}

	unsigned, err := s.buildOrders(ctx, legs, p.Stake, p.UserAddress, p.MaxSlippageBps)
	if err != nil {
		return SubmitResult{}, err
	}

	signed := make([]domain.SignedOrder, len(unsigned))
	for i, o := range unsigned {
		signed[i], err = signer.SignOrder(o)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("parlay.SignAndSubmit: sign leg %d: %w", i, err)
		}
	}

	return s.SubmitOrders(ctx, parlayID, signed)
}
