package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"portalchain/core"
	"portalchain/observability"
	"portalchain/observability/logging"
	"portalchain/services/portald/auth"
	"portalchain/services/portald/journal"
)

const moduleName = "portald"

// Runtime is the ledger surface the HTTP API drives.
type Runtime interface {
	Execute(ctx context.Context, op string, fn func(*core.Modules) error) error
	View(ctx context.Context, fn func(*core.Modules) error) error
	Assets() []string
	PortalAddress(asset string) (ethcommon.Address, error)
}

// EventLog pages through committed ledger events.
type EventLog interface {
	List(ctx context.Context, q journal.Query) ([]journal.Entry, error)
}

// Config captures the listener settings.
type Config struct {
	ListenAddress string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration
	RateLimit     RateLimit
}

// Server exposes the liquidity and portal engines over HTTP.
type Server struct {
	cfg      Config
	runtime  Runtime
	events   EventLog
	verifier *auth.Verifier
	limiter  *RateLimiter
	logger   *slog.Logger
	now      func() time.Time

	router http.Handler
}

// New constructs the server and its router.
func New(cfg Config, runtime Runtime, events EventLog, verifier *auth.Verifier, logger *slog.Logger) (*Server, error) {
	if runtime == nil {
		return nil, fmt.Errorf("runtime required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("token verifier required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		runtime:  runtime,
		events:   events,
		verifier: verifier,
		limiter:  NewRateLimiter(cfg.RateLimit),
		logger:   logger,
		now:      time.Now,
	}
	s.router = s.buildRouter()
	return s, nil
}

// SetNowFunc overrides the clock used for default trade deadlines.
func (s *Server) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware)

		api.Get("/events", s.handleEvents)

		api.Route("/tokens/{symbol}", func(tok chi.Router) {
			tok.Get("/", s.handleToken)
			tok.Get("/balances/{address}", s.handleBalance)
			tok.Get("/allowances/{owner}/{spender}", s.handleAllowance)
			tok.Group(func(protected chi.Router) {
				protected.Use(s.verifier.Middleware)
				protected.Post("/transfer", s.handleTransfer)
				protected.Post("/approve", s.handleApprove)
				protected.Post("/mint", s.handleMint)
			})
		})

		api.Route("/liquidity", func(lp chi.Router) {
			lp.Get("/", s.handlePool)
			lp.Get("/burn-value", s.handleBurnValue)
			lp.Get("/registrations", s.handleRegistrations)
			lp.Group(func(protected chi.Router) {
				protected.Use(s.verifier.Middleware)
				protected.Post("/contribute", s.handleContribute)
				protected.Post("/withdraw", s.handleWithdrawFunding)
				protected.Post("/activate", s.handleActivate)
				protected.Post("/convert", s.handleConvert)
				protected.Post("/burn", s.handleBurnBonding)
				protected.Post("/remove-owner", s.handleRemoveOwner)
			})
		})

		api.Get("/portals", s.handlePortals)
		api.Route("/portals/{asset}", func(pr chi.Router) {
			pr.Get("/", s.handlePortal)
			pr.Get("/accounts/{address}", s.handleAccount)
			pr.Get("/accounts/{address}/force-unstake-quote", s.handleForceUnstakeQuote)
			pr.Get("/quote/buy", s.handleQuoteBuy)
			pr.Get("/quote/sell", s.handleQuoteSell)
			pr.Group(func(protected chi.Router) {
				protected.Use(s.verifier.Middleware)
				protected.Post("/stake", s.handleStake)
				protected.Post("/unstake", s.handleUnstake)
				protected.Post("/force-unstake", s.handleForceUnstake)
				protected.Post("/buy", s.handleBuy)
				protected.Post("/sell", s.handleSell)
				protected.Post("/energy-token/mint", s.handleMintEnergyToken)
				protected.Post("/energy-token/burn", s.handleBurnEnergyToken)
				protected.Post("/positions", s.handleMintPosition)
				protected.Post("/positions/{id}/redeem", s.handleRedeemPosition)
				protected.Post("/lock-duration", s.handleUpdateLockDuration)
				protected.Post("/rewards", s.handleNotifyReward)
				protected.Post("/collect", s.handleCollectProfit)
			})
		})
	})

	return otelhttp.NewHandler(r, moduleName)
}

// observe records request latency per route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.ModuleMetrics().Observe(moduleName, route, status, time.Since(started))
		if status == http.StatusUnauthorized {
			s.logger.Warn("request rejected",
				slog.String("route", route),
				slog.Int("status", status),
				logging.MaskField("authorization", r.Header.Get("Authorization")),
				slog.String("request_id", chimw.GetReqID(r.Context())))
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("request failed",
				slog.String("route", route),
				slog.Int("status", status),
				slog.String("request_id", chimw.GetReqID(r.Context())))
		}
	})
}

// Run starts the HTTP server and blocks until context cancellation.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("server not configured")
	}
	srv := &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", slog.String("addr", s.cfg.ListenAddress))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "portals": s.runtime.Assets()})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, http.StatusOK, []journal.Entry{})
		return
	}
	query := r.URL.Query()
	after, err := parseInt(query.Get("after"))
	if err != nil {
		writeBadRequest(w, "after: "+err.Error())
		return
	}
	limit, err := parseInt(query.Get("limit"))
	if err != nil {
		writeBadRequest(w, "limit: "+err.Error())
		return
	}
	entries, err := s.events.List(r.Context(), journal.Query{After: after, Type: query.Get("type"), Limit: int(limit)})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
