package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/parlayhub/parlayd/internal/domain"
)

// mapOutcomePrices normaliza la respuesta de /book a []domain.OutcomePrice.
// Con envelope de outcomes usa cada book por resultado; con un book único
// de mercado binario deriva el resultado 1 como complemento del 0.
func mapOutcomePrices(resp clobBookResponse) []domain.OutcomePrice {
	if len(resp.Outcomes) > 0 {
		prices := make([]domain.OutcomePrice, 0, len(resp.Outcomes))
		for i, o := range resp.Outcomes {
			idx := i
			if o.OutcomeIndex != nil {
				idx = *o.OutcomeIndex
			}
			bids, asks := o.levels()
			prices = append(prices, domain.OutcomePrice{
				OutcomeIndex: idx,
				BestBid:      bestLevel(bids, false),
				BestAsk:      bestLevel(asks, true),
			})
		}
		return prices
	}

	bid := bestLevel(resp.Bids, false)
	ask := bestLevel(resp.Asks, true)

	return []domain.OutcomePrice{
		{OutcomeIndex: 0, BestBid: bid, BestAsk: ask},
		{OutcomeIndex: 1, BestBid: complement(bid), BestAsk: complement(ask)},
	}
}

// mapOrderBook normaliza la respuesta de /book al book de un resultado.
func mapOrderBook(resp clobBookResponse, marketID string, outcomeIndex int) domain.OrderBook {
	bids, asks := resp.Bids, resp.Asks

	for i, o := range resp.Outcomes {
		idx := i
		if o.OutcomeIndex != nil {
			idx = *o.OutcomeIndex
		}
		if idx == outcomeIndex {
			bids, asks = o.levels()
			break
		}
	}

	return domain.OrderBook{
		MarketID:     marketID,
		OutcomeIndex: outcomeIndex,
		Bids:         mapBookLevels(bids, false),
		Asks:         mapBookLevels(asks, true),
	}
}

// mapBookLevels convierte niveles raw a domain.BookEntry, descarta niveles
// no positivos, ordena y trunca a maxLevels.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookLevels(raw []bookLevelRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price, _ := strconv.ParseFloat(r.Price, 64)
		size, _ := strconv.ParseFloat(r.Size, 64)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	if len(entries) > maxLevels {
		entries = entries[:maxLevels]
	}
	return entries
}

// bestLevel devuelve el mejor precio de una lista de niveles raw, o nil.
func bestLevel(raw []bookLevelRaw, ascending bool) *float64 {
	levels := mapBookLevels(raw, ascending)
	if len(levels) == 0 {
		return nil
	}
	return domain.Float(levels[0].Price)
}

// complement devuelve 1−p para el lado contrario de un mercado binario.
func complement(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := 1 - *p
	if v <= 0 {
		return nil
	}
	return domain.Float(v)
}

// mapGammaMarket convierte un gammaMarket a domain.Market.
func mapGammaMarket(gm gammaMarket) domain.Market {
	return domain.Market{
		ID:        gm.marketID(),
		Question:  gm.Question,
		Outcomes:  normalizeOutcomes(gm.Outcomes),
		EndDate:   parseGammaTime(gm.EndDate),
		Status:    gm.status(),
		Volume:    float64(gm.Volume),
		Liquidity: float64(gm.Liquidity),
	}
}

// normalizeOutcomes acepta las formas que Gamma usa para los labels de
// resultados: array JSON, o string con un array JSON codificado dentro.
func normalizeOutcomes(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return arr
		}
		return []string{s}
	}

	return nil
}

// mapResolution normaliza los campos de resolución de un gammaMarket.
func mapResolution(gm gammaMarket) domain.MarketResolution {
	res := domain.MarketResolution{MarketID: gm.marketID()}

	switch gm.status() {
	case "resolved", "finalized", "closed":
		res.Resolved = true
	}
	if !res.Resolved {
		return res
	}

	switch {
	case gm.WinningOutcome != nil:
		res.OutcomeIndex = int(*gm.WinningOutcome)
	case len(gm.WinningOutcomes) > 0:
		var arr []flexInt
		if err := json.Unmarshal(gm.WinningOutcomes, &arr); err == nil && len(arr) > 0 {
			res.OutcomeIndex = int(arr[0])
		}
	case gm.ResolvedOutcome != nil:
		res.OutcomeIndex = int(*gm.ResolvedOutcome)
	}

	for _, raw := range []string{gm.ResolvedAt, gm.ResolutionTime, gm.EndDate, gm.ClosedAt} {
		if raw == "" {
			continue
		}
		if ts := parseGammaTime(raw); !ts.IsZero() {
			res.ResolvedAt = ts
			break
		}
	}

	return res
}

// parseGammaTime intenta los formatos de fecha que usa Polymarket.
func parseGammaTime(raw string) time.Time {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mapPositions filtra y normaliza las posiciones del usuario para los
// mercados pedidos.
func mapPositions(raw []dataPosition, marketIDs []string) []domain.Position {
	wanted := make(map[string]bool, len(marketIDs))
	for _, id := range marketIDs {
		wanted[id] = true
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		id := p.marketID()
		if !wanted[id] {
			continue
		}

		pos := domain.Position{
			MarketID:     id,
			OutcomeIndex: p.outcomeIndex(),
			Size:         firstNonZero(float64(p.Size), float64(p.Quantity)),
			Value:        firstNonZero(float64(p.Value), float64(p.CurrentValue)),
		}
		switch {
		case p.Payout != nil:
			pos.Payout = domain.Float(float64(*p.Payout))
		case p.FinalValue != nil:
			pos.Payout = domain.Float(float64(*p.FinalValue))
		}
		positions = append(positions, pos)
	}
	return positions
}

func firstNonZero(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
