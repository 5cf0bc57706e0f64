package parlay

// validateQuote aplica los dos checks de la cotización antes de persistir:
//
//  1. Fair-price bounds: precios fuera de (MinFairPrice, MaxFairPrice)
//     indican mercados ilíquidos o casi resueltos — se rechaza el leg.
//  2. Tamaño mínimo de orden: perLegStake = stake/legCount contra el mínimo
//     del venue. Es un guard heurístico de liquidez — las órdenes reales se
//     construyen con el stake completo por leg.
//
// No re-cotiza: reutiliza el quote del engine. El re-check autoritativo de
// drift ocurre después, en buildOrders, para cubrir el delay de firma.
func (s *Service) validateQuote(q Quote, stake float64) error {
	for _, leg := range q.Legs {
		if leg.PriceUsed >= s.cfg.MaxFairPrice || leg.PriceUsed <= s.cfg.MinFairPrice {
			return &ExtremePriceError{MarketID: leg.MarketID, Price: leg.PriceUsed}
		}
	}

	perLegStake := stake / float64(len(q.Legs))
	if perLegStake < s.cfg.MinOrderSizeUSDC {
		return &BelowMinimumOrderSizeError{PerLegStake: perLegStake, Minimum: s.cfg.MinOrderSizeUSDC}
	}

	return nil
}
