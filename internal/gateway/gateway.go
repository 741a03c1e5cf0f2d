// ABOUTME: Gateway orchestrator that wires the auth service behind an HTTP server
// ABOUTME: Manages store, challenge manager, metrics, and health endpoint lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/2389/sigil/internal/auth"
	"github.com/2389/sigil/internal/challenge"
	"github.com/2389/sigil/internal/config"
	"github.com/2389/sigil/internal/lattice"
	"github.com/2389/sigil/internal/metrics"
	"github.com/2389/sigil/internal/ratelimit"
	"github.com/2389/sigil/internal/revocation"
	"github.com/2389/sigil/internal/store"
)

// Gateway orchestrates the sigil-gateway server components.
type Gateway struct {
	config     *config.Config
	store      store.PrincipalStore
	challenges *challenge.Manager
	service    *auth.Service
	metrics    *metrics.Metrics
	httpServer *http.Server
	logger     *slog.Logger

	// serverID identifies this gateway instance
	serverID string

	// revoked holds logged-out session IDs; nil when tokens are disabled
	revoked *revocation.List
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.PrincipalStore, error) {
	if cfg.Database.Driver == config.DriverMemory {
		return store.NewMemoryStore(), nil
	}

	dbPath := cfg.Database.Path
	if envPath := os.Getenv("SIGIL_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	params, err := cfg.SchemeParams()
	if err != nil {
		return nil, fmt.Errorf("configuring scheme: %w", err)
	}
	scheme, err := lattice.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating scheme: %w", err)
	}
	if scheme.Name() == lattice.SchemeToy {
		logger.Warn("toy lattice scheme enabled; its keys can be recovered from public keys, do not use it to protect anything")
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	challenges := challenge.NewManager(s,
		challenge.WithTTL(cfg.Challenge.TTL),
		challenge.WithLogger(logger.With("component", "challenge")),
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		m.RegisterGauge("challenges_outstanding", "Challenges issued and not yet consumed.", func() float64 {
			return float64(challenges.Outstanding())
		})
	}

	gw := &Gateway{
		config:     cfg,
		store:      s,
		challenges: challenges,
		metrics:    m,
		logger:     logger.With("component", "gateway"),
		serverID:   generateServerID(),
	}

	svcCfg := auth.Config{
		Scheme:     scheme,
		Principals: s,
		Challenges: challenges,
		Limiter:    ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Metrics:    m,
		Logger:     logger.With("component", "auth"),
	}
	if cfg.Auth.JWTSecret != "" {
		gw.revoked = revocation.New(cfg.Auth.RevocationSize)
		svcCfg.Tokens = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		svcCfg.TokenTTL = cfg.Auth.TokenTTL
		svcCfg.Revocations = gw.revoked
	} else {
		logger.Warn("auth.jwt_secret not set, logins will not issue session tokens")
	}

	gw.service, err = auth.NewService(svcCfg)
	if err != nil {
		gw.closeComponents()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Handler builds the HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)

	g.registerAPIRoutes(mux)

	if g.metrics != nil {
		mux.Handle(g.config.Metrics.Path, g.metrics.Handler())
	}

	return g.requestLogger(mux)
}

// Service returns the authentication service behind the HTTP routes.
func (g *Gateway) Service() *auth.Service {
	return g.service
}

// requestLogger tags each request with an ID and logs it once served.
func (g *Gateway) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		g.logger.Debug("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway",
		"server_id", g.serverID,
		"http_addr", g.config.Server.HTTPAddr,
		"scheme", g.service.Scheme().Name(),
	)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents stops background sweepers and closes the store.
func (g *Gateway) closeComponents() error {
	if g.challenges != nil {
		g.challenges.Close()
	}
	if g.revoked != nil {
		g.revoked.Close()
	}
	return g.store.Close()
}

// Shutdown stops the HTTP server and releases every component.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if g.httpServer != nil {
		errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	}
	errs = appendCloseError(errs, "store close", g.closeComponents())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the principal store answers queries.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := g.store.PrincipalExists(r.Context(), "readiness-check"); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d challenges outstanding)", g.challenges.Outstanding())
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return fmt.Sprintf("sigil-gateway-%d", time.Now().UnixNano()%1000000)
}
