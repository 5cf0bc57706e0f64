package domain

import (
	"errors"
	"time"
)

// ErrParlayNotFound lo devuelven los stores cuando el parlay no existe.
var ErrParlayNotFound = errors.New("parlay not found")

// ParlayStatus represents the lifecycle of a parlay.
//
//	draft → pending_signature → active → won | lost
//	pending_signature | active → failed
type ParlayStatus string

const (
	StatusDraft            ParlayStatus = "draft"
	StatusPendingSignature ParlayStatus = "pending_signature"
	StatusActive           ParlayStatus = "active"
	StatusWon              ParlayStatus = "won"
	StatusLost             ParlayStatus = "lost"
	StatusFailed           ParlayStatus = "failed"
)

// Terminal devuelve true si el parlay ya no puede cambiar de estado.
func (s ParlayStatus) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusFailed
}

// LegRequest es la intención del usuario: un (mercado, resultado) dentro del parlay.
// Inmutable una vez enviado al cálculo de odds.
type LegRequest struct {
	MarketID     string
	OutcomeIndex int
}

// CalculatedLeg es un leg con el precio cotizado al momento del cálculo.
type CalculatedLeg struct {
	MarketID     string
	OutcomeIndex int
	PriceUsed    float64 // (0,1)
	Odds         float64 // 1 / PriceUsed
}

// Parlay es una apuesta compuesta: N legs independientes cuyo multiplicador
// combinado es el producto de los odds individuales.
//
// KTotal y ExpectedPayout se congelan al momento de creación con la cotización
// validada; solo la resolución escribe ActualPayout/RealizedPnl.
type Parlay struct {
	ID             string
	UserAddress    string
	Stake          float64
	KTotal         float64
	ExpectedPayout float64
	MaxSlippageBps int
	Status         ParlayStatus
	ActualPayout   *float64
	RealizedPnl    *float64
	ResolvedAt     *time.Time
	CreatedAt      time.Time
	Legs           []ParlayLeg
}

// ParlayLeg es el snapshot persistido e inmutable del precio que justificó
// incluir el leg. Size es el stake completo — cada leg es una posición
// colateralizada independiente, no un reparto del stake.
type ParlayLeg struct {
	MarketID     string
	OutcomeIndex int
	PriceUsed    float64
	Size         float64
}

// MarketIDs devuelve los market IDs de todos los legs, en orden.
func (p Parlay) MarketIDs() []string {
	ids := make([]string, len(p.Legs))
	for i, l := range p.Legs {
		ids[i] = l.MarketID
	}
	return ids
}

// OrderStatus es el estado de un snapshot de orden enviada al venue.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusFailed  OrderStatus = "failed"
)

// OrderSnapshot registra un intento de envío de orden por leg. Se crea
// incluso cuando el envío falla, para preservar el audit trail.
type OrderSnapshot struct {
	ID           int64
	ParlayID     string
	MarketID     string
	VenueOrderID string
	Side         Side
	Price        float64
	Size         float64
	Status       OrderStatus
	Raw          string // payload crudo del venue, JSON
	CreatedAt    time.Time
}

// Settlement contiene los campos que escribe la resolución al cerrar un parlay.
type Settlement struct {
	ActualPayout float64
	RealizedPnl  float64
	ResolvedAt   time.Time
}

// RefreshSummary es el resultado de un refresh batch sobre los parlays
// activos de un usuario.
type RefreshSummary struct {
	Updated int
	Total   int
	Errors  int
}
