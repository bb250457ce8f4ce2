package http

import (
	"net/http"
	"time"

	"github.com/X1ag/PickupNotifier/internal/config"
	"github.com/X1ag/PickupNotifier/internal/domain"
	"github.com/X1ag/PickupNotifier/internal/usecase"
	"github.com/X1ag/PickupNotifier/transport/http/handler"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, dispatcher handler.Dispatcher, settings domain.SettingsRepository, pickups *usecase.PickupUsecase) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: cfg.CORSAllowCredentials,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	dh := &handler.DispatcherHandler{Dispatcher: dispatcher}
	r.Route("/dispatcher", func(r chi.Router) {
		r.Get("/status", dh.Status)
		r.Post("/run", dh.Run)
	})

	sh := &handler.SettingsHandler{Repo: settings}
	r.Put("/stores/{storeID}/settings/{key}", sh.Put)

	ph := &handler.PickupHandler{UC: pickups}
	r.Route("/pickups", func(r chi.Router) {
		r.Post("/", ph.Create)
		r.Post("/{id}/extend", ph.Extend)
		r.Post("/{id}/assign", ph.Reassign)
	})

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info().
				Str("request_id", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("took", time.Since(start)).
				Msg("http request")
		})
	}
}
