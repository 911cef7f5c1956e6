package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/httpapi"
	"github.com/MrEthical07/goSession/identity/google"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/storage/sqlite"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `serve reads its configuration from the environment (see LoadConfigFromEnv),
opens the SQLite database, connects to Redis and serves the auth routes,
/healthz, /.well-known/jwks.json and /metrics until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ec, cfg, err := goSession.LoadConfigFromEnv()
			if err != nil {
				return err
			}
			if listen != "" {
				ec.ListenAddr = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := newServer(ec, cfg, logger)
			if err != nil {
				return err
			}
			defer srv.Close()

			ln, err := net.Listen("tcp", ec.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", ec.ListenAddr, err)
			}
			return srv.Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides LISTEN_ADDR")
	return cmd
}

// server is the assembled process: engine, stores and the root handler.
type server struct {
	engine  *goSession.Engine
	store   *sqlite.Store
	redis   *redis.Client
	handler http.Handler
	logger  *slog.Logger
}

func newServer(ec goSession.EnvConfig, cfg goSession.Config, logger *slog.Logger) (*server, error) {
	store, err := sqlite.Open(ec.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	redisOpts, err := redis.ParseURL(ec.RedisURL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)

	s := &server{store: store, redis: rdb, logger: logger}
	engine, err := s.buildEngine(ec, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = engine

	api := httpapi.New(engine, httpapi.WithHealthCheck(store.Ping))
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Handle("/metrics", prometheus.New(engine).Handler())
	r.Mount("/", api.Router())
	s.handler = r
	return s, nil
}

func (s *server) buildEngine(ec goSession.EnvConfig, cfg goSession.Config) (*goSession.Engine, error) {
	provider, err := google.New(google.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.RedirectURL,
		HTTPClient:   &http.Client{Timeout: cfg.Timeouts.Identity},
	})
	if err != nil {
		return nil, err
	}

	b := goSession.New().
		WithConfig(cfg).
		WithRedis(s.redis).
		WithLogger(s.logger).
		WithUserStore(s.store).
		WithIdentityProvider(provider).
		WithKeyPreflight()

	switch strings.ToLower(strings.TrimSpace(ec.SessionStore)) {
	case "sqlite", "":
		b.WithSessionRepository(s.store)
	case "redis":
		// The builder falls back to the Redis repository.
	default:
		return nil, fmt.Errorf("SESSION_STORE %q: want sqlite or redis", ec.SessionStore)
	}

	engine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, nil
}

// Serve accepts on ln until ctx is done, then drains in-flight requests.
func (s *server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *server) Close() {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}
