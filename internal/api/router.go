package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type RouterConfig struct {
	Service BookingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Booking endpoints; everything here needs an authenticated subject
	r.Group(func(r chi.Router) {
		r.Use(PrincipalMiddleware)

		r.Get("/availability", availabilityHandler(cfg.Service))
		r.Post("/bookings", createBookingHandler(cfg.Service))
		r.Get("/bookings", listBookingsHandler(cfg.Service))
		r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Service))
	})

	return r
}
