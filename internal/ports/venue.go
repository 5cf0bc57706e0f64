package ports

import (
	"context"

	"github.com/parlayhub/parlayd/internal/domain"
)

// OrderSubmitter envía órdenes firmadas al venue.
type OrderSubmitter interface {
	// SubmitOrder envía una orden firmada y devuelve el resultado normalizado.
	// Un error implica que el venue rechazó (o nunca recibió) la orden.
	SubmitOrder(ctx context.Context, order domain.SignedOrder) (domain.VenueOrderResult, error)
}

// OrderSigner firma una orden construida por el engine. La implementación
// principal es la wallet del usuario (fuera de este proceso); el signer
// local EOA existe para despliegues server-side.
type OrderSigner interface {
	SignOrder(order domain.UnsignedOrder) (domain.SignedOrder, error)
}
