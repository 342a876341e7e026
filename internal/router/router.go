package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studypulse-backend/internal/handlers"
	"studypulse-backend/internal/middleware"
	"studypulse-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	analyticsHandler *handlers.AnalyticsHandler,
	wsHub *websocket.Hub,
	sessionChannel *websocket.SessionChannel,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Dashboards poll the rollup; keep them from hammering the store.
	queryLimiter := middleware.NewRateLimiter(120, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Analytics Queries ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(queryLimiter.Middleware)
			r.Get("/{id}/analytics", analyticsHandler.GetSessionAnalytics)
			r.Get("/{id}/report", analyticsHandler.ExportReport)
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole("teacher")) // class-wide data is dashboard-only
			r.Use(queryLimiter.Middleware)
			r.Get("/{id}/rollup", analyticsHandler.GetRoomRollup)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleObserver)          // observer dashboards
		r.Get("/ws/session", sessionChannel.Handle) // student event stream
	})

	return r
}
