package domain

// Side de una orden en el venue. Todos los legs de un parlay son BUY.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// UnsignedOrder es una orden construida por el engine, lista para firma externa.
// Un parlay produce exactamente una orden por leg.
type UnsignedOrder struct {
	Market     string // market/condition ID
	Outcome    int
	Side       Side
	Price      float64
	Size       float64
	Maker      string // dirección del usuario
	Expiration int64  // unix seconds
	Nonce      int64  // único por leg dentro de un mismo build
}

// SignedOrder es una UnsignedOrder con la firma y los campos derivados que
// exige el venue. La firma ocurre fuera del engine (wallet del usuario o
// signer local opcional).
type SignedOrder struct {
	UnsignedOrder

	Salt          string
	MakerAmount   string
	TakerAmount   string
	Signature     string // 0x-hex
	SignatureType int
}

// VenueOrderResult es la respuesta normalizada del venue a un envío de orden.
type VenueOrderResult struct {
	OrderID string
	Status  string
	Raw     string // respuesta cruda, JSON
}
