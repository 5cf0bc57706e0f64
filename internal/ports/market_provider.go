package ports

import (
	"context"

	"github.com/parlayhub/parlayd/internal/domain"
)

// MarketProvider obtiene los mercados activos del venue con su metadata.
type MarketProvider interface {
	FetchActiveMarkets(ctx context.Context) ([]domain.Market, error)
}

// MarketSyncer espeja metadata de mercados en el storage local. Es una
// operación best-effort de background: sus errores nunca deben propagarse
// al request path.
type MarketSyncer interface {
	SyncMarkets(ctx context.Context, markets []domain.Market) error
}
