package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signquiz-service/internal/app"
	"signquiz-service/internal/auth"
)

// RouterConfig carries what the router needs beyond the quiz service.
type RouterConfig struct {
	Authenticator *auth.Authenticator
	Gatherer      prometheus.Gatherer
	Logger        *slog.Logger
	// CORSOrigins lists allowed browser origins; empty allows all.
	CORSOrigins []string
}

// NewRouter mounts health, metrics, the coin balance endpoint and the quiz websocket.
func NewRouter(service *app.QuizService, cfg RouterConfig) http.Handler {
	mux := chi.NewRouter()

	if len(cfg.CORSOrigins) == 0 {
		mux.Use(cors.AllowAll().Handler)
	} else {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if cfg.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	ws := NewWSHandler(service, cfg.Logger)
	mux.Group(func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware)
		r.Get("/api/coins", CoinsHandler(service))
		r.Get("/ws", ws.ServeWS)
	})

	return mux
}
