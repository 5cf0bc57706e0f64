package ports

import (
	"context"

	"github.com/parlayhub/parlayd/internal/domain"
)

// PriceFeed obtiene precios actuales del order book del venue.
type PriceFeed interface {
	// GetOutcomePrices devuelve best bid/ask para cada resultado del mercado.
	GetOutcomePrices(ctx context.Context, marketID string) ([]domain.OutcomePrice, error)

	// GetOrderBook devuelve los top niveles del book para un resultado:
	// bids de mayor a menor, asks de menor a mayor.
	GetOrderBook(ctx context.Context, marketID string, outcomeIndex int) (domain.OrderBook, error)
}
