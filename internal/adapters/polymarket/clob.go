package polymarket

// clob.go — Polymarket CLOB API adapter.
//
// Implementa ports.PriceFeed. Normaliza las formas polimórficas del
// endpoint /book a un schema interno estricto; el engine nunca ve la
// respuesta cruda.

import (
	"context"
	"fmt"

	"github.com/parlayhub/parlayd/internal/domain"
)

const (
	bookPath  = "/book"
	maxLevels = 20 // top-N niveles por lado del book
)

// GetOutcomePrices devuelve best bid/ask para cada resultado del mercado.
func (c *Client) GetOutcomePrices(ctx context.Context, marketID string) ([]domain.OutcomePrice, error) {
	var resp clobBookResponse
	url := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, bookPath, marketID)
	if err := c.get(ctx, c.bookLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("clob.GetOutcomePrices %s: %w", marketID, err)
	}
	return mapOutcomePrices(resp), nil
}

// GetOrderBook devuelve los top niveles del book para un resultado.
func (c *Client) GetOrderBook(ctx context.Context, marketID string, outcomeIndex int) (domain.OrderBook, error) {
	var resp clobBookResponse
	url := fmt.Sprintf("%s%s?token_id=%s", c.clobBase, bookPath, marketID)
	if err := c.get(ctx, c.bookLimiter, url, &resp); err != nil {
		return domain.OrderBook{}, fmt.Errorf("clob.GetOrderBook %s/%d: %w", marketID, outcomeIndex, err)
	}
	return mapOrderBook(resp, marketID, outcomeIndex), nil
}
