package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/accountkeeper/internal/logging"
	"github.com/dmitrijs2005/accountkeeper/internal/server/config"
	"github.com/dmitrijs2005/accountkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// RouterOptions collects what NewRouter wires. Metrics, MetricsHandler and
// RateLimit may be nil.
type RouterOptions struct {
	Accounts       Accounts
	Guard          Guard
	Uploads        Uploads
	Logger         logging.Logger
	Metrics        RequestObserver
	MetricsHandler http.Handler
	RateLimit      func(http.Handler) http.Handler
}

func corsOptions(cfg *config.Config) cors.Options {
	return cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           300,
	}
}

func NewRouter(cfg *config.Config, opts RouterOptions) http.Handler {
	h := NewHandler(opts.Accounts, opts.Uploads, opts.Logger)
	limit := opts.RateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(corsOptions(cfg)))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.Heartbeat)

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/users", func(r chi.Router) {
		r.Post("/register/", h.Register)
		r.With(limit).Post("/login/", h.Login)

		r.Route("/recover", func(r chi.Router) {
			r.Use(limit)
			r.Post("/", h.RecoverInitiate)
			r.Post("/resend-otp/", h.RecoverResend)
			r.Post("/verify-otp/", h.VerifyOTP)
			r.Post("/complete/", h.CompleteRecovery)
		})

		r.With(RequireTier(opts.Guard, services.TierAuthenticated, h.logger)).Get("/me/", h.Me)
	})

	r.Post("/commoners/upload/", h.Upload)

	return r
}
