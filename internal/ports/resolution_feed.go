package ports

import (
	"context"

	"github.com/parlayhub/parlayd/internal/domain"
)

// ResolutionFeed reporta qué mercados ya resolvieron y qué resultado ganó.
type ResolutionFeed interface {
	GetResolutions(ctx context.Context, marketIDs []string) ([]domain.MarketResolution, error)
}

// PositionFeed reporta las posiciones realizadas de un usuario por mercado.
type PositionFeed interface {
	GetPositions(ctx context.Context, userAddress string, marketIDs []string) ([]domain.Position, error)
}
