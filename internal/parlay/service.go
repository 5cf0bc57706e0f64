package parlay

// service.go — orquestación del ciclo de vida de parlays.
//
// Pipeline de creación: odds → validación → persistencia (pending_signature)
// → construcción de órdenes sin firmar. La firma ocurre fuera del engine;
// el submit y la resolución viven en submit.go / resolution.go.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/ports"
)

// Config contiene los límites de trading del engine.
type Config struct {
	MinOrderSizeUSDC      float64
	MinFairPrice          float64
	MaxFairPrice          float64
	DefaultMaxSlippageBps int
	MaxLegs               int
	OrderTTL              time.Duration
}

// DefaultConfig devuelve los límites de producción.
func DefaultConfig() Config {
	return Config{
		MinOrderSizeUSDC:      5,
		MinFairPrice:          0.01,
		MaxFairPrice:          0.99,
		DefaultMaxSlippageBps: 300, // 3%
		MaxLegs:               6,
		OrderTTL:              7 * 24 * time.Hour,
	}
}

// Service implementa el engine de parlays sobre los ports inyectados.
type Service struct {
	cfg         Config
	prices      ports.PriceFeed
	resolutions ports.ResolutionFeed
	positions   ports.PositionFeed
	store       ports.ParlayStore
	venue       ports.OrderSubmitter
}

// New crea el Service. Todos los colaboradores son interfaces para que los
// tests puedan sustituir fakes deterministas.
func New(cfg Config, prices ports.PriceFeed, resolutions ports.ResolutionFeed,
	positions ports.PositionFeed, store ports.ParlayStore, venue ports.OrderSubmitter) *Service {
	return &Service{
		cfg:         cfg,
		prices:      prices,
		resolutions: resolutions,
		positions:   positions,
		store:       store,
		venue:       venue,
	}
}

// CreateResult es la salida de CreateParlay: el parlay persistido, la
// cotización usada para validarlo y las órdenes listas para firma.
type CreateResult struct {
	Parlay domain.Parlay
	Legs   []domain.CalculatedLeg
	Orders []domain.UnsignedOrder
}

// CreateParlay valida, cotiza y persiste un parlay nuevo en estado
// pending_signature, y construye una orden sin firmar por leg.
func (s *Service) CreateParlay(ctx context.Context, userAddress string, stake float64,
	legs []domain.LegRequest, maxSlippageBps int) (CreateResult, error) {

	if userAddress == "" {
		return CreateResult{}, ErrMissingAddress
	}
	if len(legs) == 0 {
		return CreateResult{}, ErrEmptyParlay
	}
	if len(legs) > s.cfg.MaxLegs {
		return CreateResult{}, fmt.Errorf("%w: %d legs (max %d)", ErrTooManyLegs, len(legs), s.cfg.MaxLegs)
	}
	if stake <= 0 {
		return CreateResult{}, ErrNonPositiveStake
	}
	if maxSlippageBps <= 0 {
		maxSlippageBps = s.cfg.DefaultMaxSlippageBps
	}

	quote, err := s.CalculateOdds(ctx, legs, stake)
	if err != nil {
		return CreateResult{}, err
	}

	if err := s.validateQuote(quote, stake); err != nil {
		return CreateResult{}, err
	}

	p := domain.Parlay{
		ID:             uuid.NewString(),
		UserAddress:    userAddress,
		Stake:          stake,
		KTotal:         quote.KTotal,
		ExpectedPayout: quote.ExpectedPayout,
		MaxSlippageBps: maxSlippageBps,
		Status:         domain.StatusPendingSignature,
		CreatedAt:      time.Now().UTC(),
		Legs:           make([]domain.ParlayLeg, len(quote.Legs)),
	}
	for i, leg := range quote.Legs {
		p.Legs[i] = domain.ParlayLeg{
			MarketID:     leg.MarketID,
			OutcomeIndex: leg.OutcomeIndex,
			PriceUsed:    leg.PriceUsed,
			Size:         stake, // stake completo por leg, no stake/legCount
		}
	}

	if err := s.store.CreateParlay(ctx, p); err != nil {
		return CreateResult{}, fmt.Errorf("parlay.CreateParlay: persist: %w", err)
	}

	orders, err := s.buildOrders(ctx, quote.Legs, stake, userAddress, maxSlippageBps)
	if err != nil {
		return CreateResult{}, err
	}

	slog.Info("parlay created",
		"parlay_id", p.ID,
		"user", userAddress,
		"legs", len(p.Legs),
		"k_total", fmt.Sprintf("%.4f", p.KTotal),
		"expected_payout", fmt.Sprintf("%.2f", p.ExpectedPayout),
	)

	return CreateResult{Parlay: p, Legs: quote.Legs, Orders: orders}, nil
}

// UserParlays devuelve los parlays del usuario, más recientes primero.
func (s *Service) UserParlays(ctx context.Context, userAddress string) ([]domain.Parlay, error) {
	if userAddress == "" {
		return nil, ErrMissingAddress
	}
	parlays, err := s.store.UserParlays(ctx, userAddress)
	if err != nil {
		return nil, fmt.Errorf("parlay.UserParlays: %w", err)
	}
	return parlays, nil
}

// GetParlay devuelve un parlay con sus legs y snapshots de órdenes.
func (s *Service) GetParlay(ctx context.Context, parlayID string) (domain.Parlay, []domain.OrderSnapshot, error) {
	p, err := s.store.GetParlay(ctx, parlayID)
	if err != nil {
		return domain.Parlay{}, nil, err
	}
	snaps, err := s.store.OrderSnapshots(ctx, parlayID)
	if err != nil {
		return domain.Parlay{}, nil, fmt.Errorf("parlay.GetParlay: snapshots: %w", err)
	}
	return p, snaps, nil
}
