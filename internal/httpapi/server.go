package httpapi

// server.go — superficie HTTP del engine.
//
// Los handlers validan input, delegan en los services y mapean errores
// tipados a status codes con errors.As/Is — nunca string matching.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/markets"
	"github.com/parlayhub/parlayd/internal/parlay"
	"github.com/parlayhub/parlayd/internal/ports"
)

const (
	minSlippageBps = 10
	maxSlippageBps = 2000
)

// Server expone el engine de parlays y el catálogo de mercados por HTTP.
type Server struct {
	parlays *parlay.Service
	markets *markets.Service
	signer  ports.OrderSigner // opcional; nil deshabilita sign-and-submit
}

// NewServer crea el Server. signer puede ser nil.
func NewServer(parlays *parlay.Service, mkts *markets.Service, signer ports.OrderSigner) *Server {
	return &Server{parlays: parlays, markets: mkts, signer: signer}
}

// Router construye el router chi con middleware y todas las rutas.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json200(w, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/parlays", s.createParlay)
		r.Get("/parlays", s.listParlays)
		r.Get("/parlays/{id}", s.getParlay)
		r.Post("/parlays/{id}/submit-orders", s.submitOrders)
		r.Post("/parlays/{id}/sign-and-submit", s.signAndSubmit)
		r.Post("/parlays/{id}/refresh", s.refreshParlay)
		r.Post("/parlays/refresh-all", s.refreshAll)

		r.Get("/markets", s.listMarkets)
		r.Get("/markets/{id}/book", s.getBook)
		r.Get("/markets/{id}/ticker", s.getTicker)
	})

	return r
}

// ── Parlays ──────────────────────────────────────────

type legReq struct {
	MarketID     string `json:"marketId"`
	OutcomeIndex int    `json:"outcomeIndex"`
}

type createParlayReq struct {
	UserAddress    string   `json:"userAddress"`
	Stake          float64  `json:"stake"`
	Legs           []legReq `json:"legs"`
	MaxSlippageBps int      `json:"maxSlippageBps"`
}

func (s *Server) createParlay(w http.ResponseWriter, r *http.Request) {
	var req createParlayReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	// Clamp en vez de rechazar: un límite fuera de rango es casi siempre
	// un cliente mal configurado, no una intención real.
	if req.MaxSlippageBps != 0 {
		if req.MaxSlippageBps < minSlippageBps {
			req.MaxSlippageBps = minSlippageBps
		}
		if req.MaxSlippageBps > maxSlippageBps {
			req.MaxSlippageBps = maxSlippageBps
		}
	}

	legs := make([]domain.LegRequest, len(req.Legs))
	for i, l := range req.Legs {
		if l.MarketID == "" {
			jsonErr(w, http.StatusBadRequest, "legs[].marketId is required")
			return
		}
		if l.OutcomeIndex < 0 {
			jsonErr(w, http.StatusBadRequest, "legs[].outcomeIndex must be >= 0")
			return
		}
		legs[i] = domain.LegRequest{MarketID: l.MarketID, OutcomeIndex: l.OutcomeIndex}
	}

	result, err := s.parlays.CreateParlay(r.Context(), req.UserAddress, req.Stake, legs, req.MaxSlippageBps)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	jsonCode(w, http.StatusCreated, map[string]any{
		"parlayId":       result.Parlay.ID,
		"status":         result.Parlay.Status,
		"stake":          result.Parlay.Stake,
		"kTotal":         result.Parlay.KTotal,
		"expectedPayout": result.Parlay.ExpectedPayout,
		"maxSlippageBps": result.Parlay.MaxSlippageBps,
		"calculatedLegs": toLegDTOs(result.Legs),
		"unsignedOrders": toOrderDTOs(result.Orders),
	})
}

func (s *Server) listParlays(w http.ResponseWriter, r *http.Request) {
	userAddress := r.URL.Query().Get("userAddress")
	parlays, err := s.parlays.UserParlays(r.Context(), userAddress)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := make([]map[string]any, len(parlays))
	for i, p := range parlays {
		out[i] = parlayDTO(p)
	}
	json200(w, map[string]any{"parlays": out})
}

func (s *Server) getParlay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, snaps, err := s.parlays.GetParlay(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dto := parlayDTO(p)
	dto["orderSnapshots"] = toSnapshotDTOs(snaps)
	json200(w, dto)
}

type signedOrderReq struct {
	MarketID      string  `json:"marketId"`
	OutcomeIndex  int     `json:"outcomeIndex"`
	Side          string  `json:"side"`
	Price         float64 `json:"price"`
	Size          float64 `json:"size"`
	Maker         string  `json:"maker"`
	Expiration    int64   `json:"expiration"`
	Nonce         int64   `json:"nonce"`
	Salt          string  `json:"salt"`
	MakerAmount   string  `json:"makerAmount"`
	TakerAmount   string  `json:"takerAmount"`
	Signature     string  `json:"signature"`
	SignatureType int     `json:"signatureType"`
}

func (s *Server) submitOrders(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		SignedOrders []signedOrderReq `json:"signedOrders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	orders := make([]domain.SignedOrder, len(req.SignedOrders))
	for i, o := range req.SignedOrders {
		if o.Signature == "" {
			jsonErr(w, http.StatusBadRequest, "signedOrders[].signature is required")
			return
		}
		orders[i] = domain.SignedOrder{
			UnsignedOrder: domain.UnsignedOrder{
				Market:     o.MarketID,
				Outcome:    o.OutcomeIndex,
				Side:       domain.Side(o.Side),
				Price:      o.Price,
				Size:       o.Size,
				Maker:      o.Maker,
				Expiration: o.Expiration,
				Nonce:      o.Nonce,
			},
			Salt:          o.Salt,
			MakerAmount:   o.MakerAmount,
			TakerAmount:   o.TakerAmount,
			Signature:     o.Signature,
			SignatureType: o.SignatureType,
		}
	}

	result, err := s.parlays.SubmitOrders(r.Context(), id, orders)
	if err != nil {
		// Un fallo de submission deja estado persistido que el cliente
		// necesita ver; incluimos el resultado parcial en el body.
		var subErr *parlay.SubmissionFailedError
		if errors.As(err, &subErr) {
			jsonCode(w, http.StatusBadGateway, map[string]any{
				"error":     subErr.Error(),
				"parlayId":  result.ParlayID,
				"status":    result.Status,
				"submitted": result.Submitted,
				"snapshots": toSnapshotDTOs(result.Snapshots),
			})
			return
		}
		writeEngineError(w, err)
		return
	}

	json200(w, map[string]any{
		"parlayId":  result.ParlayID,
		"status":    result.Status,
		"submitted": result.Submitted,
		"snapshots": toSnapshotDTOs(result.Snapshots),
	})
}

func (s *Server) signAndSubmit(w http.ResponseWriter, r *http.Request) {
	if s.signer == nil {
		jsonErr(w, http.StatusNotImplemented, "local signer is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	result, err := s.parlays.SignAndSubmit(r.Context(), id, s.signer)
	if err != nil {
		var subErr *parlay.SubmissionFailedError
		if errors.As(err, &subErr) {
			jsonCode(w, http.StatusBadGateway, map[string]any{
				"error":     subErr.Error(),
				"parlayId":  result.ParlayID,
				"status":    result.Status,
				"submitted": result.Submitted,
				"snapshots": toSnapshotDTOs(result.Snapshots),
			})
			return
		}
		writeEngineError(w, err)
		return
	}

	json200(w, map[string]any{
		"parlayId":  result.ParlayID,
		"status":    result.Status,
		"submitted": result.Submitted,
		"snapshots": toSnapshotDTOs(result.Snapshots),
	})
}

func (s *Server) refreshParlay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.parlays.Refresh(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	json200(w, parlayDTO(p))
}

func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request) {
	userAddress := r.URL.Query().Get("userAddress")
	summary, err := s.parlays.RefreshAll(r.Context(), userAddress)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	json200(w, map[string]any{
		"updated": summary.Updated,
		"total":   summary.Total,
		"errors":  summary.Errors,
	})
}

// ── Markets ──────────────────────────────────────────

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	list, err := s.markets.List(r.Context())
	if err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}

	out := make([]map[string]any, len(list))
	for i, m := range list {
		out[i] = map[string]any{
			"id":        m.ID,
			"question":  m.Question,
			"outcomes":  m.Outcomes,
			"endDate":   m.EndDate,
			"status":    m.Status,
			"volume":    m.Volume,
			"liquidity": m.Liquidity,
			"yesPrice":  m.YesPrice,
			"yesOdds":   m.YesOdds,
			"noPrice":   m.NoPrice,
			"noOdds":    m.NoOdds,
		}
	}
	json200(w, map[string]any{"markets": out})
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcomeIndex, ok := outcomeParam(w, r)
	if !ok {
		return
	}

	book, err := s.markets.Book(r.Context(), id, outcomeIndex)
	if err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}

	json200(w, map[string]any{
		"marketId":     book.MarketID,
		"outcomeIndex": book.OutcomeIndex,
		"bids":         toLevelDTOs(book.Bids),
		"asks":         toLevelDTOs(book.Asks),
	})
}

func (s *Server) getTicker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcomeIndex, ok := outcomeParam(w, r)
	if !ok {
		return
	}

	ticker, err := s.markets.Ticker(r.Context(), id, outcomeIndex)
	if err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}

	json200(w, map[string]any{
		"marketId":     ticker.MarketID,
		"outcomeIndex": ticker.OutcomeIndex,
		"bestBid":      ticker.BestBid,
		"bestAsk":      ticker.BestAsk,
		"midPrice":     ticker.MidPrice,
	})
}

// outcomeParam parsea ?outcomeIndex= con default 0.
func outcomeParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("outcomeIndex")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		jsonErr(w, http.StatusBadRequest, "outcomeIndex must be a non-negative integer")
		return 0, false
	}
	return n, true
}

// ── Error mapping ────────────────────────────────────

// writeEngineError mapea los errores tipados del engine a status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		noData   *parlay.NoPriceDataError
		noLiq    *parlay.InsufficientLiquidityError
		extreme  *parlay.ExtremePriceError
		tooSmall *parlay.BelowMinimumOrderSizeError
		moved    *parlay.PriceMovedError
		mktMoved *parlay.MarketMovedError
		badState *parlay.InvalidParlayStateError
		mismatch *parlay.OrderCountMismatchError
	)

	switch {
	case errors.Is(err, parlay.ErrEmptyParlay),
		errors.Is(err, parlay.ErrNonPositiveStake),
		errors.Is(err, parlay.ErrTooManyLegs),
		errors.Is(err, parlay.ErrMissingAddress):
		jsonErr(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &mismatch):
		jsonErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrParlayNotFound):
		jsonErr(w, http.StatusNotFound, err.Error())
	case errors.As(err, &badState):
		jsonErr(w, http.StatusConflict, err.Error())
	case errors.As(err, &noData),
		errors.As(err, &noLiq),
		errors.As(err, &extreme),
		errors.As(err, &tooSmall),
		errors.As(err, &moved),
		errors.As(err, &mktMoved):
		jsonErr(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("unhandled engine error", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
	}
}

// ── Middleware ───────────────────────────────────────

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ── DTOs / helpers ───────────────────────────────────

func parlayDTO(p domain.Parlay) map[string]any {
	legs := make([]map[string]any, len(p.Legs))
	for i, l := range p.Legs {
		legs[i] = map[string]any{
			"marketId":     l.MarketID,
			"outcomeIndex": l.OutcomeIndex,
			"priceUsed":    l.PriceUsed,
			"size":         l.Size,
		}
	}
	return map[string]any{
		"parlayId":       p.ID,
		"userAddress":    p.UserAddress,
		"stake":          p.Stake,
		"kTotal":         p.KTotal,
		"expectedPayout": p.ExpectedPayout,
		"maxSlippageBps": p.MaxSlippageBps,
		"status":         p.Status,
		"actualPayout":   p.ActualPayout,
		"realizedPnl":    p.RealizedPnl,
		"resolvedAt":     p.ResolvedAt,
		"createdAt":      p.CreatedAt,
		"legs":           legs,
	}
}

func toLegDTOs(legs []domain.CalculatedLeg) []map[string]any {
	out := make([]map[string]any, len(legs))
	for i, l := range legs {
		out[i] = map[string]any{
			"marketId":     l.MarketID,
			"outcomeIndex": l.OutcomeIndex,
			"priceUsed":    l.PriceUsed,
			"odds":         l.Odds,
		}
	}
	return out
}

func toOrderDTOs(orders []domain.UnsignedOrder) []map[string]any {
	out := make([]map[string]any, len(orders))
	for i, o := range orders {
		out[i] = map[string]any{
			"marketId":     o.Market,
			"outcomeIndex": o.Outcome,
			"side":         o.Side,
			"price":        o.Price,
			"size":         o.Size,
			"maker":        o.Maker,
			"expiration":   o.Expiration,
			"nonce":        o.Nonce,
		}
	}
	return out
}

func toSnapshotDTOs(snaps []domain.OrderSnapshot) []map[string]any {
	out := make([]map[string]any, len(snaps))
	for i, s := range snaps {
		out[i] = map[string]any{
			"id":           s.ID,
			"parlayId":     s.ParlayID,
			"marketId":     s.MarketID,
			"venueOrderId": s.VenueOrderID,
			"side":         s.Side,
			"price":        s.Price,
			"size":         s.Size,
			"status":       s.Status,
			"createdAt":    s.CreatedAt,
		}
	}
	return out
}

func toLevelDTOs(levels []domain.BookEntry) []map[string]any {
	out := make([]map[string]any, len(levels))
	for i, l := range levels {
		out[i] = map[string]any{"price": l.Price, "size": l.Size}
	}
	return out
}

func json200(w http.ResponseWriter, data any) {
	jsonCode(w, http.StatusOK, data)
}

func jsonCode(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonCode(w, code, map[string]string{"error": msg})
}
