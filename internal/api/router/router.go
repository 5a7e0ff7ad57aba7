package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sathicare/booking-core/internal/appointments"
	"github.com/sathicare/booking-core/internal/booking"
	httpmiddleware "github.com/sathicare/booking-core/internal/http/middleware"
	"github.com/sathicare/booking-core/internal/schedule"
	"github.com/sathicare/booking-core/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ScheduleHandler     *schedule.Handler
	AppointmentsHandler *appointments.Handler
	BookingHandler      *booking.Handler
	JWTSecret           string
	RateLimiter         *httpmiddleware.RateLimiter
	MetricsHandler      http.Handler
}

// New creates the chi router with every route mounted.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.Authenticate(cfg.JWTSecret))
		if cfg.RateLimiter != nil {
			api.Use(cfg.RateLimiter.RateLimit)
		}

		if h := cfg.ScheduleHandler; h != nil {
			api.Get("/professionals/me/availability", h.GetAvailability)
			api.Put("/professionals/me/availability", h.SaveAvailability)
			api.Get("/professionals/{professionalID}/slots", h.ListSlots)
		}
		if h := cfg.AppointmentsHandler; h != nil {
			api.Get("/professionals/{professionalID}/booked-slots", h.BookedSlots)
			api.Get("/appointments/mine", h.Mine)
			api.Post("/appointments/{appointmentID}/confirm", h.Confirm)
			api.Post("/appointments/{appointmentID}/cancel", h.Cancel)
			api.Post("/appointments/{appointmentID}/complete", h.Complete)
		}
		if h := cfg.BookingHandler; h != nil {
			api.Post("/appointments", h.BookDirect)
			api.Post("/payments/orders", h.CreateOrder)
			api.Post("/payments/verify-and-book", h.VerifyAndBook)
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
