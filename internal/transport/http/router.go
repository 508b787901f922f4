package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-eid-verify/internal/application/verification"
	"github.com/go-eid-verify/internal/config"
	"github.com/go-eid-verify/internal/transport/http/handler"
	appmiddleware "github.com/go-eid-verify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work started by middleware.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !allowsAnyOrigin(cfg.AllowedOrigins),
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.TokenVerifier)
	if deps.TokenVerifier == nil {
		authMw = denyAll
	}

	verifyRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)

	redirects := verification.NewRedirectBuilder(cfg.Verification.DefaultReturnPath)
	initiator := verification.NewInitiator(cfg.Provider, cfg.Cookies.TTL, redirects)
	opts := []verification.CallbackOption{verification.WithExchangeTimeout(cfg.Provider.ExchangeTimeout)}
	if deps.Alerter != nil {
		opts = append(opts, verification.WithAlerter(deps.Alerter))
	}
	processor := verification.NewCallbackProcessor(deps.Exchange, deps.Persister, redirects, opts...)

	healthH := handler.NewHealthHandler(deps.Ready)
	verifyH := handler.NewVerificationHandler(initiator, processor, deps.Persister, handler.VaultFunc(deps.Vaults))

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		// The provider redirects the browser here; the attempt cookies bind it to the caller.
		r.With(verifyRL.Limit).Get("/identity-verification/callback", verifyH.Callback)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.With(verifyRL.Limit).Get("/identity-verification/authorize", verifyH.Authorize)
			r.Get("/identity-verification/status", verifyH.Status)
		})
	})

	return r
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"authentication unavailable"}`, http.StatusUnauthorized)
	})
}
