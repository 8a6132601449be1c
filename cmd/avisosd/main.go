package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cryptoavisos/config"
	"cryptoavisos/core/events"
	"cryptoavisos/core/state"
	avcrypto "cryptoavisos/crypto"
	"cryptoavisos/gateway/middleware"
	"cryptoavisos/gateway/routes"
	"cryptoavisos/integrations/journal"
	"cryptoavisos/integrations/webhooks"
	"cryptoavisos/native/market"
	"cryptoavisos/observability/logging"
	telemetry "cryptoavisos/observability/otel"
	"cryptoavisos/storage"
)

const serviceName = "avisosd"

func main() {
	configFile := flag.String("config", "./avisos.toml", "Path to the configuration file (TOML or YAML)")
	listenFlag := flag.String("listen", "", "Override Gateway.ListenAddress")
	issueToken := flag.String("issue-token", "", "Print a gateway bearer token for the given address and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *listenFlag != "" {
		cfg.Gateway.ListenAddress = *listenFlag
	}

	if *issueToken != "" {
		if err := printToken(os.Stdout, cfg, *issueToken, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, logCloser, err := logging.Setup(cfg.LoggingConfig(serviceName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("avisosd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func printToken(w io.Writer, cfg *config.Config, raw string, ttl time.Duration) error {
	addr, err := avcrypto.ParseAddress(raw)
	if err != nil {
		return err
	}
	token, err := middleware.IssueToken(cfg.JWTSecretValue(), addr, cfg.Gateway.JWTIssuer, cfg.Gateway.JWTAudience, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func openDatabase(dataDir string) (storage.Database, error) {
	if strings.TrimSpace(dataDir) == "" {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(filepath.Join(dataDir, "ledger"))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Traces:      cfg.Telemetry.Traces,
		Metrics:     cfg.Telemetry.Metrics,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	params, err := cfg.EngineParams()
	if err != nil {
		return err
	}
	engine, err := market.NewEngine(state.NewManager(db), params)
	if err != nil {
		return fmt.Errorf("open market: %w", err)
	}
	engine.SetLogger(logger)

	var (
		emitters events.Fanout
		source   routes.EventSource
	)
	if path := strings.TrimSpace(cfg.JournalPath); path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("journal dir: %w", err)
			}
		}
		j, err := journal.Open(path, logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		emitters = append(emitters, j)
		source = j
	}
	if endpoint := strings.TrimSpace(cfg.Webhook.Endpoint); endpoint != "" {
		dispatcher, err := webhooks.NewDispatcher(endpoint, []byte(cfg.WebhookSecretValue()),
			webhooks.WithEventTypes(cfg.Webhook.Events...),
			webhooks.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("webhooks: %w", err)
		}
		defer dispatcher.Close()
		emitters = append(emitters, dispatcher)
	}
	if len(emitters) > 0 {
		engine.SetEmitter(emitters)
	}

	if err := applyGenesis(ctx, engine, cfg.Genesis, logger); err != nil {
		return err
	}

	secret := cfg.JWTSecretValue()
	if secret == "" {
		return fmt.Errorf("gateway: JWT secret required (Gateway.JWTSecret or $%s)", cfg.Gateway.JWTSecretEnv)
	}
	handler, err := routes.New(routes.Config{
		Engine: engine,
		Events: source,
		Authenticator: middleware.NewAuthenticator(middleware.AuthConfig{
			HMACSecret: secret,
			Issuer:     cfg.Gateway.JWTIssuer,
			Audience:   cfg.Gateway.JWTAudience,
		}, logger),
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RatePerSecond: cfg.Gateway.RatePerSecond,
			Burst:         cfg.Gateway.RateBurst,
		}, logger),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{LogRequests: true}, logger),
		Logger:        logger,
		ServiceName:   serviceName,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Gateway.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	logger.Info("avisosd listening",
		slog.String("address", listener.Addr().String()),
		slog.String("admin", params.Admin.Hex()),
		slog.String("custody", params.Custody.Hex()),
		slog.Uint64("domainId", params.DomainID),
		logging.MaskField("jwtSecret", secret),
	)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}

// applyGenesis credits the configured allocations to a fresh ledger. Either
// every allocation lands or none does.
func applyGenesis(ctx context.Context, engine *market.Engine, allocations []config.Allocation, logger *slog.Logger) error {
	parsed := make([]market.Allocation, 0, len(allocations))
	for i, alloc := range allocations {
		token, to, amount, err := alloc.Parse()
		if err != nil {
			return fmt.Errorf("genesis[%d]: %w", i, err)
		}
		parsed = append(parsed, market.Allocation{Token: token, To: to, Amount: amount})
	}
	applied, err := engine.ApplyGenesis(ctx, parsed)
	if err != nil || !applied {
		return err
	}
	for _, alloc := range parsed {
		logger.Info("genesis allocation", slog.String("token", events.TokenLabel(alloc.Token)), slog.String("to", alloc.To.Hex()), slog.String("amount", alloc.Amount.String()))
	}
	return nil
}
