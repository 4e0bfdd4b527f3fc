package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listen-party/sync-service/internal/registry"
	httpmw "github.com/listen-party/sync-service/internal/transport/http/middleware"
	"github.com/listen-party/sync-service/internal/transport/ws"
)

func NewRouter(h *Handler, sessions *registry.SessionStore, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	// WS endpoint; токен сессии в query — заголовки в браузерном WS недоступны
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	r.Post("/session", h.CreateSession)

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware(sessions))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetRoom)
				rr.Get("/chat", h.GetChatHistory)
			})
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
