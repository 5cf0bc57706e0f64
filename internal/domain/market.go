package domain

import "time"

// Market representa un mercado de predicción binario del venue,
// enriquecido con metadata de Gamma y precios del CLOB.
type Market struct {
	ID        string
	Question  string
	Outcomes  []string
	EndDate   time.Time
	Status    string
	Volume    float64
	Liquidity float64

	// Enriquecimiento best-effort: nil = sin datos de precio.
	YesPrice *float64
	YesOdds  *float64
	NoPrice  *float64
	NoOdds   *float64
}

// Resolvable devuelve false si el status del mercado indica que ya cerró.
func (m Market) Resolvable() bool {
	switch m.Status {
	case "resolved", "finalized", "closed":
		return false
	}
	return true
}

// OutcomePrice es el best bid/ask de un resultado concreto de un mercado.
// Punteros nil indican ausencia de liquidez en ese lado del book.
type OutcomePrice struct {
	OutcomeIndex int
	BestBid      *float64 // (0,1)
	BestAsk      *float64 // (0,1)
}

// BuyPrice devuelve el precio de compra a usar: best ask si existe,
// best bid como fallback. ok=false si no hay precio positivo en ningún lado.
func (p OutcomePrice) BuyPrice() (float64, bool) {
	if p.BestAsk != nil && *p.BestAsk > 0 {
		return *p.BestAsk, true
	}
	if p.BestBid != nil && *p.BestBid > 0 {
		return *p.BestBid, true
	}
	return 0, false
}

// Ticker resume el estado del book para un (mercado, resultado).
type Ticker struct {
	MarketID     string
	OutcomeIndex int
	BestBid      *float64
	BestAsk      *float64
	MidPrice     *float64
}

// Float devuelve un puntero a v. Helper para los campos opcionales de precios.
func Float(v float64) *float64 { return &v }
