package polymarket

// dataapi.go — Data API adapter. Implementa ports.PositionFeed.

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parlayhub/parlayd/internal/domain"
)

const positionsPath = "/positions"

// GetPositions devuelve las posiciones del usuario para los mercados dados.
// Tolera los dos envelopes que usa la Data API (array plano o {positions}).
func (c *Client) GetPositions(ctx context.Context, userAddress string, marketIDs []string) ([]domain.Position, error) {
	url := fmt.Sprintf("%s%s?user=%s", c.dataBase, positionsPath, userAddress)

	var resp dataPositionsEnvelope
	if err := c.get(ctx, c.dataLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("dataapi.GetPositions %s: %w", userAddress, err)
	}

	positions := mapPositions(resp.Positions, marketIDs)
	slog.Debug("positions fetched",
		"user", userAddress,
		"raw", len(resp.Positions),
		"matched", len(positions),
	)
	return positions, nil
}
