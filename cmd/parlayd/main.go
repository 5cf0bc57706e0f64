package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/parlayhub/parlayd/config"
	"github.com/parlayhub/parlayd/internal/adapters/polymarket"
	"github.com/parlayhub/parlayd/internal/adapters/storage"
	"github.com/parlayhub/parlayd/internal/domain"
	"github.com/parlayhub/parlayd/internal/httpapi"
	"github.com/parlayhub/parlayd/internal/markets"
	"github.com/parlayhub/parlayd/internal/parlay"
	"github.com/parlayhub/parlayd/internal/ports"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	listParlays := flag.String("parlays", "", "print the parlays of the given address and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	setupLogger(cfg.Log)

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase, cfg.API.DataBase)

	store, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	var venue ports.OrderSubmitter
	if cfg.HasVenueCreds() {
		venue = polymarket.NewVenueClient(client, polymarket.Credentials{
			APIKey:     cfg.Venue.APIKey,
			Secret:     cfg.Venue.Secret,
			Passphrase: cfg.Venue.Passphrase,
			Address:    cfg.Venue.Address,
		})
	} else {
		slog.Warn("no CLOB credentials configured, order submission disabled")
		venue = unavailableVenue{}
	}

	var signer ports.OrderSigner
	if cfg.Venue.SignerKey != "" {
		s, err := polymarket.NewLocalSigner(cfg.Venue.SignerKey, cfg.Venue.SignerNegRisk)
		if err != nil {
			slog.Error("invalid signer key", "err", err)
			os.Exit(1)
		}
		signer = s
		slog.Info("local signer enabled", "address", s.Address())
	}

	engineCfg := parlay.Config{
		MinOrderSizeUSDC:      cfg.Trading.MinOrderSizeUSDC,
		MinFairPrice:          cfg.Trading.MinFairPrice,
		MaxFairPrice:          cfg.Trading.MaxFairPrice,
		DefaultMaxSlippageBps: cfg.Trading.DefaultMaxSlippageBps,
		MaxLegs:               cfg.Trading.MaxLegs,
		OrderTTL:              cfg.OrderTTL(),
	}
	parlays := parlay.New(engineCfg, client, client, client, store, venue)
	mkts := markets.New(client, client, store, 0)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *listParlays != "" {
		printParlays(ctx, parlays, *listParlays)
		return
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpapi.NewServer(parlays, mkts, signer).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "err", err)
		}
	}()

	slog.Info("parlayd starting", "addr", cfg.Server.Addr, "storage", cfg.Storage.DSN)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("parlayd stopped cleanly")
}

// printParlays imprime los parlays del usuario como tabla y termina.
func printParlays(ctx context.Context, svc *parlay.Service, userAddress string) {
	list, err := svc.UserParlays(ctx, userAddress)
	if err != nil {
		slog.Error("failed to list parlays", "err", err, "user", userAddress)
		os.Exit(1)
	}

	if len(list) == 0 {
		fmt.Printf("no parlays for %s\n", userAddress)
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Status", "Legs", "Stake", "K", "Expected", "Actual", "PnL", "Created")

	for _, p := range list {
		table.Append(
			p.ID,
			string(p.Status),
			fmt.Sprintf("%d", len(p.Legs)),
			fmt.Sprintf("$%.2f", p.Stake),
			fmt.Sprintf("%.2fx", p.KTotal),
			fmt.Sprintf("$%.2f", p.ExpectedPayout),
			optAmount(p.ActualPayout),
			optAmount(p.RealizedPnl),
			p.CreatedAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}

func optAmount(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

// unavailableVenue rechaza todo envío cuando no hay credenciales configuradas.
type unavailableVenue struct{}

func (unavailableVenue) SubmitOrder(context.Context, domain.SignedOrder) (domain.VenueOrderResult, error) {
	return domain.VenueOrderResult{}, errors.New("order submission is disabled: no CLOB credentials configured")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
