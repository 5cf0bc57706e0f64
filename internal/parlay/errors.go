package parlay

// errors.go — taxonomía de errores del engine.
//
// Los errores que la capa HTTP necesita discriminar son tipos propios;
// el mapeo a status codes se hace con errors.As/Is, nunca con strings.

import (
	"errors"
	"fmt"

	"github.com/parlayhub/parlayd/internal/domain"
)

// Errores de input: rechazo inmediato, sin efectos secundarios.
var (
	ErrEmptyParlay      = errors.New("parlay must have at least one leg")
	ErrNonPositiveStake = errors.New("stake must be greater than zero")
	ErrTooManyLegs      = errors.New("too many legs in parlay")
	ErrMissingAddress   = errors.New("user address is required")
)

// NoPriceDataError: el feed no devolvió entrada para el resultado pedido.
type NoPriceDataError struct {
	MarketID     string
	OutcomeIndex int
}

func (e *NoPriceDataError) Error() string {
	return fmt.Sprintf("no price info for market %s, outcome %d", e.MarketID, e.OutcomeIndex)
}

// InsufficientLiquidityError: el resultado existe pero no tiene precio usable.
type InsufficientLiquidityError struct {
	MarketID     string
	OutcomeIndex int
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("not enough liquidity for market %s, outcome %d", e.MarketID, e.OutcomeIndex)
}

// ExtremePriceError: el precio cotizado está fuera de los fair-price bounds.
// Protege contra mercados ilíquidos o casi resueltos.
type ExtremePriceError struct {
	MarketID string
	Price    float64
}

func (e *ExtremePriceError) Error() string {
	return fmt.Sprintf("price for market %s is too extreme (%.4f), refusing to create parlay", e.MarketID, e.Price)
}

// BelowMinimumOrderSizeError: stake/legCount por debajo del mínimo del venue.
type BelowMinimumOrderSizeError struct {
	PerLegStake float64
	Minimum     float64
}

func (e *BelowMinimumOrderSizeError) Error() string {
	return fmt.Sprintf("stake per leg (%.2f USDC) is below minimum allowed (%.2f USDC)", e.PerLegStake, e.Minimum)
}

// PriceMovedError: drift entre cotización y re-cotización al construir órdenes.
// Aborta el build completo; no se devuelve ningún set parcial de órdenes.
type PriceMovedError struct {
	MarketID       string
	OldPrice       float64
	NewPrice       float64
	MaxSlippageBps int
}

func (e *PriceMovedError) Error() string {
	return fmt.Sprintf("price moved too much for market %s (old=%.4f, new=%.4f), slippage limit %.2f%% exceeded",
		e.MarketID, e.OldPrice, e.NewPrice, float64(e.MaxSlippageBps)/100)
}

// MarketMovedError: drift detectado en el check previo al submit. Ninguna
// orden fue enviada; el usuario debe recrear el parlay con precios frescos.
type MarketMovedError struct {
	MarketID       string
	OldPrice       float64
	NewPrice       float64
	MaxSlippageBps int
}

func (e *MarketMovedError) Error() string {
	return fmt.Sprintf("market %s moved too much (old=%.4f, new=%.4f), recreate the parlay with updated prices",
		e.MarketID, e.OldPrice, e.NewPrice)
}

// InvalidParlayStateError: el parlay no está en el status que la operación exige.
type InvalidParlayStateError struct {
	ParlayID string
	Status   domain.ParlayStatus
	Want     domain.ParlayStatus
}

func (e *InvalidParlayStateError) Error() string {
	return fmt.Sprintf("parlay %s is not in %s status (current: %s)", e.ParlayID, e.Want, e.Status)
}

// OrderCountMismatchError: la lista de órdenes firmadas no corresponde
// posicionalmente a los legs persistidos.
type OrderCountMismatchError struct {
	Orders int
	Legs   int
}

func (e *OrderCountMismatchError) Error() string {
	return fmt.Sprintf("got %d signed orders for %d legs", e.Orders, e.Legs)
}

// SubmissionFailedError: el venue rechazó la orden del leg indicado.
// Los legs anteriores quedan enviados en el venue; el parlay pasa a failed.
type SubmissionFailedError struct {
	ParlayID string
	LegIndex int
	MarketID string
	Err      error
}

func (e *SubmissionFailedError) Error() string {
	return fmt.Sprintf("parlay %s: submit order for leg %d (market %s): %v", e.ParlayID, e.LegIndex, e.MarketID, e.Err)
}

func (e *SubmissionFailedError) Unwrap() error { return e.Err }
