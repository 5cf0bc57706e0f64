package parlay

// resolution.go — máquina de estados de resolución.
//
// active → won  : todos los legs resolvieron y todos acertaron.
// active → lost : todos los legs resolvieron y al menos uno falló.
// Mientras cualquier leg siga sin resolver, Refresh es un no-op idempotente.
//
// La transición es un compare-and-set sobre status=active: dos refreshes
// concurrentes del mismo parlay no pueden aplicar la resolución dos veces.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parlayhub/parlayd/internal/domain"
)

// refreshWorkers acota el fan-out de RefreshAll.
const refreshWorkers = 4

// Refresh consulta la resolución de cada mercado del parlay y, si todos
// resolvieron, cierra el parlay como won o lost con su payout realizado.
// Un parlay no-activo (o aún no resoluble) se devuelve sin cambios.
func (s *Service) Refresh(ctx context.Context, parlayID string) (domain.Parlay, error) {
	p, err := s.store.GetParlay(ctx, parlayID)
	if err != nil {
		return domain.Parlay{}, err
	}

	if p.Status != domain.StatusActive {
		// ya procesado o todavía sin ejecutar — nada que refrescar
		return p, nil
	}

	marketIDs := p.MarketIDs()
	resolutions, err := s.resolutions.GetResolutions(ctx, marketIDs)
	if err != nil {
		return domain.Parlay{}, fmt.Errorf("parlay.Refresh: resolutions: %w", err)
	}

	byMarket := make(map[string]domain.MarketResolution, len(resolutions))
	for _, r := range resolutions {
		byMarket[r.MarketID] = r
	}

	// Si algún mercado sigue sin resolver, salimos sin mutar nada.
	for _, leg := range p.Legs {
		res, ok := byMarket[leg.MarketID]
		if !ok || !res.Resolved {
			return p, nil
		}
	}

	allWin := true
	for _, leg := range p.Legs {
		if byMarket[leg.MarketID].OutcomeIndex != leg.OutcomeIndex {
			allWin = false
			break
		}
	}

	settlement, err := s.settle(ctx, p, byMarket, allWin)
	if err != nil {
		return domain.Parlay{}, err
	}

	to := domain.StatusLost
	if allWin {
		to = domain.StatusWon
	}

	applied, err := s.store.UpdateParlayStatus(ctx, parlayID, domain.StatusActive, to, &settlement)
	if err != nil {
		return domain.Parlay{}, fmt.Errorf("parlay.Refresh: update status: %w", err)
	}
	if !applied {
		// Un refresh concurrente ganó la carrera; devolvemos lo que quedó.
		return s.store.GetParlay(ctx, parlayID)
	}

	slog.Info("parlay resolved",
		"parlay_id", parlayID,
		"status", to,
		"actual_payout", fmt.Sprintf("%.2f", settlement.ActualPayout),
		"realized_pnl", fmt.Sprintf("%.2f", settlement.RealizedPnl),
	)

	return s.store.GetParlay(ctx, parlayID)
}

// settle calcula payout, pnl y resolvedAt para un parlay completamente resuelto.
func (s *Service) settle(ctx context.Context, p domain.Parlay,
	byMarket map[string]domain.MarketResolution, allWin bool) (domain.Settlement, error) {

	if !allWin {
		return domain.Settlement{
			ActualPayout: 0,
			RealizedPnl:  -p.Stake,
			ResolvedAt:   time.Now().UTC(),
		}, nil
	}

	positions, err := s.positions.GetPositions(ctx, p.UserAddress, p.MarketIDs())
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("parlay: fetch positions: %w", err)
	}

	type posKey struct {
		market  string
		outcome int
	}
	byKey := make(map[posKey]domain.Position, len(positions))
	for _, pos := range positions {
		byKey[posKey{pos.MarketID, pos.OutcomeIndex}] = pos
	}

	// actualPayout = Σ payout realizado por leg. Si el data API todavía no
	// refleja posiciones, el payout registrado es 0 — nunca se escribe una
	// estimación en un campo financiero terminal.
	var payout float64
	for _, leg := range p.Legs {
		if pos, ok := byKey[posKey{leg.MarketID, leg.OutcomeIndex}]; ok {
			payout += pos.Realized()
		}
	}

	// resolvedAt = el máximo de los timestamps de resolución reportados;
	// si el feed no reporta ninguno, el momento del refresh.
	var resolvedAt time.Time
	for _, leg := range p.Legs {
		if ts := byMarket[leg.MarketID].ResolvedAt; ts.After(resolvedAt) {
			resolvedAt = ts
		}
	}
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	return domain.Settlement{
		ActualPayout: payout,
		RealizedPnl:  payout - p.Stake,
		ResolvedAt:   resolvedAt,
	}, nil
}

// RefreshAll aplica Refresh a cada parlay activo del usuario de forma
// independiente: el fallo de un parlay no impide que los demás actualicen.
func (s *Service) RefreshAll(ctx context.Context, userAddress string) (domain.RefreshSummary, error) {
	if userAddress == "" {
		return domain.RefreshSummary{}, ErrMissingAddress
	}

	active, err := s.store.UserParlaysByStatus(ctx, userAddress, domain.StatusActive)
	if err != nil {
		return domain.RefreshSummary{}, fmt.Errorf("parlay.RefreshAll: %w", err)
	}

	summary := domain.RefreshSummary{Total: len(active)}
	if len(active) == 0 {
		return summary, nil
	}

	type outcome struct {
		changed bool
		err     error
	}
	results := make([]outcome, len(active))

	// Pool acotado: sin límite, un usuario con muchos parlays satura el
	// rate limiter del feed de resoluciones.
	workers := refreshWorkers
	if len(active) < workers {
		workers = len(active)
	}
	idxCh := make(chan int, len(active))
	for i := range active {
		idxCh <- i
	}
	close(idxCh)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idxCh {
				refreshed, err := s.Refresh(ctx, active[i].ID)
				if err != nil {
					results[i] = outcome{err: err}
					continue
				}
				results[i] = outcome{changed: refreshed.Status != domain.StatusActive}
			}
		}()
	}
	wg.Wait()

	for i, r := range results {
		switch {
		case r.err != nil:
			summary.Errors++
			slog.Warn("parlay refresh failed, left for retry",
				"parlay_id", active[i].ID, "err", r.err)
		case r.changed:
			summary.Updated++
		}
	}

	return summary, nil
}
