package polymarket

// gamma.go — Gamma API adapter.
//
// Implementa ports.MarketProvider (listado de mercados activos) y
// ports.ResolutionFeed (qué resultado ganó). Gamma usa varios spellings
// para status/ganador/fecha de resolución; la normalización vive en
// mapping.go.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/parlayhub/parlayd/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageLimit   = 100
	gammaIDsMax      = 20 // máx ids por request a /markets
)

// FetchActiveMarkets devuelve los mercados abiertos del venue.
func (c *Client) FetchActiveMarkets(ctx context.Context) ([]domain.Market, error) {
	url := fmt.Sprintf("%s%s?status=open&limit=%d", c.gammaBase, gammaMarketsPath, gammaPageLimit)

	var resp []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("gamma.FetchActiveMarkets: %w", err)
	}

	markets := make([]domain.Market, 0, len(resp))
	for _, gm := range resp {
		m := mapGammaMarket(gm)
		if m.ID == "" || !m.Resolvable() {
			continue
		}
		markets = append(markets, m)
	}

	slog.Debug("active markets fetched", "total", len(resp), "open", len(markets))
	return markets, nil
}

// GetResolutions devuelve el estado de resolución de los mercados dados.
// Mercados que Gamma no conoce se reportan como no resueltos, para que un
// refresh de parlay nunca falle por un hueco del feed.
func (c *Client) GetResolutions(ctx context.Context, marketIDs []string) ([]domain.MarketResolution, error) {
	byID := make(map[string]domain.MarketResolution, len(marketIDs))

	for i := 0; i < len(marketIDs); i += gammaIDsMax {
		end := i + gammaIDsMax
		if end > len(marketIDs) {
			end = len(marketIDs)
		}
		batch := marketIDs[i:end]

		url := fmt.Sprintf("%s%s?ids=%s", c.gammaBase, gammaMarketsPath, strings.Join(batch, ","))

		var resp []gammaMarket
		if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
			return nil, fmt.Errorf("gamma.GetResolutions: %w", err)
		}

		for _, gm := range resp {
			res := mapResolution(gm)
			if res.MarketID != "" {
				byID[res.MarketID] = res
			}
		}
	}

	resolutions := make([]domain.MarketResolution, 0, len(marketIDs))
	for _, id := range marketIDs {
		if res, ok := byID[id]; ok {
			resolutions = append(resolutions, res)
			continue
		}
		resolutions = append(resolutions, domain.MarketResolution{MarketID: id, Resolved: false})
	}
	return resolutions, nil
}
