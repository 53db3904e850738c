package delivery

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handlers struct {
	Speech *SpeechHandler
	Health *HealthHandler
	Admin  *AdminHandler // nil for the remote backend
	WS     http.HandlerFunc
}

func NewRouter(h Handlers, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
	}))

	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r chi.Router, h Handlers) {
	r.Post("/speech2text", h.Speech.Transcribe)
	r.Get("/healthz", h.Health.Healthz)

	if h.Admin != nil {
		r.Post("/admin/model/reload", h.Admin.Reload)
	}
	if h.WS != nil {
		r.Get("/ws", h.WS)
	}
}
