package domain

import "time"

// MarketResolution es la determinación final del venue sobre un mercado.
type MarketResolution struct {
	MarketID     string
	OutcomeIndex int // resultado ganador, válido solo si Resolved
	Resolved     bool
	ResolvedAt   time.Time // zero si el feed no lo reporta
}

// Position es la posición realizada del usuario en un (mercado, resultado).
type Position struct {
	MarketID     string
	OutcomeIndex int
	Size         float64
	Value        float64  // valor actual en USDC
	Payout       *float64 // payout final tras resolución, si el feed lo expone
}

// Realized devuelve el monto realizado de la posición: el payout explícito
// si existe, el valor actual como aproximación si no.
func (p Position) Realized() float64 {
	if p.Payout != nil {
		return *p.Payout
	}
	return p.Value
}
