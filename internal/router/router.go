package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/hopingminds/menrol-api/internal/config"
	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/handler"
	mw "github.com/hopingminds/menrol-api/internal/middleware"
	"github.com/hopingminds/menrol-api/internal/notify"
	"github.com/hopingminds/menrol-api/internal/service"
	"github.com/hopingminds/menrol-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Authentication and role guards sit on the route groups; the WebSocket
// endpoint authenticates itself via the token query parameter.
func New(cfg *config.Config, svc *service.FulfillmentService, broker *notify.Broker, log *logrus.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket route (handles auth internally via query param)
	wsHandler := ws.NewHandler(cfg.JWTSecret, broker, svc, log)
	r.Get("/ws/views", wsHandler.ServeViews)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		cartHandler := handler.NewCartHandler(svc, log)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleUser))
			r.Route("/cart", cartHandler.RegisterRoutes)
		})

		orderHandler := handler.NewOrderHandler(svc, log)
		r.Route("/orders", orderHandler.RegisterRoutes)
	})

	log.Info("router initialized")
	return r
}
