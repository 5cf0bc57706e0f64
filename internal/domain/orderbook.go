package domain

// OrderBook representa el libro de órdenes de un (mercado, resultado).
type OrderBook struct {
	MarketID     string
	OutcomeIndex int
	Bids         []BookEntry // ordenados mayor a menor precio
	Asks         []BookEntry // ordenados menor a mayor precio
}

// BookEntry es un nivel de precio en el orderbook.
type BookEntry struct {
	Price float64
	Size  float64
}

// BestBid devuelve el mejor precio de compra (mayor bid).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk devuelve el mejor precio de venta (menor ask).
// Devuelve 0 si el book está vacío.
func (ob OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Midpoint devuelve el punto medio entre best bid y best ask.
func (ob OrderBook) Midpoint() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// Spread devuelve el spread del book (ask - bid).
func (ob OrderBook) Spread() float64 {
	bid := ob.BestBid()
	ask := ob.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// Ticker deriva el ticker del book.
func (ob OrderBook) Ticker() Ticker {
	t := Ticker{MarketID: ob.MarketID, OutcomeIndex: ob.OutcomeIndex}
	if bid := ob.BestBid(); bid > 0 {
		t.BestBid = Float(bid)
	}
	if ask := ob.BestAsk(); ask > 0 {
		t.BestAsk = Float(ask)
	}
	if mid := ob.Midpoint(); mid > 0 {
		t.MidPrice = Float(mid)
	}
	return t
}
