package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DTOs raw de las APIs de Polymarket. Solo se usan dentro de este paquete.
// La normalización a domain entities se hace en mapping.go — el engine
// nunca ve estas formas.

// --- CLOB API ---

// clobBookResponse cubre las dos formas que devuelve el endpoint /book:
// un envelope con books por resultado, o un book único de mercado binario
// (el resultado 1 se deriva como complemento).
type clobBookResponse struct {
	Outcomes []clobOutcomeBook `json:"outcomes"`
	Bids     []bookLevelRaw    `json:"bids"`
	Asks     []bookLevelRaw    `json:"asks"`
}

// clobOutcomeBook es el book de un resultado dentro del envelope. Algunas
// respuestas anidan el book bajo "book", otras lo ponen inline.
type clobOutcomeBook struct {
	OutcomeIndex *int           `json:"outcomeIndex"`
	Book         *clobInnerBook `json:"book"`
	Bids         []bookLevelRaw `json:"bids"`
	Asks         []bookLevelRaw `json:"asks"`
}

type clobInnerBook struct {
	Bids []bookLevelRaw `json:"bids"`
	Asks []bookLevelRaw `json:"asks"`
}

// bookLevelRaw es un nivel de precio raw (strings para mayor precisión).
type bookLevelRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// levels devuelve el book efectivo del resultado: anidado si existe, inline si no.
func (o clobOutcomeBook) levels() (bids, asks []bookLevelRaw) {
	if o.Book != nil {
		return o.Book.Bids, o.Book.Asks
	}
	return o.Bids, o.Asks
}

// --- Gamma API ---

// gammaMarket contiene la metadata de un mercado. Gamma devuelve varios
// campos con spellings alternativos y números como strings JSON.
type gammaMarket struct {
	ID           string          `json:"id"`
	ConditionID  string          `json:"conditionId"`
	Question     string          `json:"question"`
	Outcomes     json.RawMessage `json:"outcomes"` // array o string JSON-encoded
	EndDate      string          `json:"endDate"`
	Status       string          `json:"status"`
	MarketStatus string          `json:"marketStatus"`
	Volume       flexFloat       `json:"volume"`
	Liquidity    flexFloat       `json:"liquidity"`

	// Campos de resolución, con los nombres alternativos observados.
	WinningOutcome  *flexInt        `json:"winningOutcome"`
	WinningOutcomes json.RawMessage `json:"winningOutcomes"`
	ResolvedOutcome *flexInt        `json:"resolvedOutcome"`
	ResolvedAt      string          `json:"resolvedAt"`
	ResolutionTime  string          `json:"resolutionTime"`
	ClosedAt        string          `json:"closedAt"`
}

// marketID devuelve el identificador consistente: id con fallback a conditionId.
func (m gammaMarket) marketID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.ConditionID
}

// status devuelve el status efectivo, cualquiera sea el campo que lo traiga.
func (m gammaMarket) status() string {
	if m.Status != "" {
		return m.Status
	}
	return m.MarketStatus
}

// --- Data API ---

// dataPositionsEnvelope acepta tanto un array plano como {positions: [...]}.
type dataPositionsEnvelope struct {
	Positions []dataPosition
}

func (e *dataPositionsEnvelope) UnmarshalJSON(b []byte) error {
	b = []byte(strings.TrimSpace(string(b)))
	if len(b) > 0 && b[0] == '[' {
		return json.Unmarshal(b, &e.Positions)
	}
	var wrapped struct {
		Positions []dataPosition `json:"positions"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	e.Positions = wrapped.Positions
	return nil
}

// dataPosition es una posición raw con los nombres de campo alternativos
// que usa la Data API.
type dataPosition struct {
	MarketID     string    `json:"marketId"`
	ConditionID  string    `json:"conditionId"`
	Market       string    `json:"market"`
	OutcomeIndex *flexInt  `json:"outcomeIndex"`
	Outcome      *flexInt  `json:"outcome"`
	Size         flexFloat `json:"size"`
	Quantity     flexFloat `json:"quantity"`
	Value        flexFloat `json:"value"`
	CurrentValue flexFloat `json:"currentValue"`
	Payout       *flexFloat `json:"payout"`
	FinalValue   *flexFloat `json:"finalValue"`
}

func (p dataPosition) marketID() string {
	switch {
	case p.MarketID != "":
		return p.MarketID
	case p.ConditionID != "":
		return p.ConditionID
	}
	return p.Market
}

func (p dataPosition) outcomeIndex() int {
	if p.OutcomeIndex != nil {
		return int(*p.OutcomeIndex)
	}
	if p.Outcome != nil {
		return int(*p.Outcome)
	}
	return 0
}

// --- helpers de decodificación tolerante ---

// flexFloat acepta números JSON, strings numéricos y null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil // campo no numérico — lo tratamos como ausente
	}
	*f = flexFloat(v)
	return nil
}

// flexInt acepta ints JSON, strings numéricos y null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}
