package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/metrics"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(metrics.Middleware)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1/sms", func(r chi.Router) {
		r.Post("/send", h.Enqueue)
		r.Post("/queue", h.Enqueue)
		r.Post("/test", h.TestSend)
		r.Get("/status", h.Status)
		r.Get("/health", h.Health)
	})

	r.Route("/v1/audit", func(r chi.Router) {
		r.Get("/", h.ListDeliveries)
		r.Get("/stats", h.DeliveryStats)
		r.Post("/purge", h.PurgeDeliveries)
	})

	r.Route("/v1/calendar", func(r chi.Router) {
		r.Post("/populate", h.PopulateCalendar)
		r.Get("/{date}", h.CalendarDay)
	})

	if h.directory != nil {
		r.Route("/v1/groups", func(r chi.Router) {
			r.Post("/", h.CreateGroup)
			r.Delete("/{groupID}", h.DeleteGroup)
			r.Get("/{groupID}/members", h.GroupMembers)
			r.Put("/{groupID}/members/{userID}", h.AddMember)
			r.Delete("/{groupID}/members/{userID}", h.RemoveMember)
		})
		r.Route("/v1/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)
			r.Get("/by-phone/{phone}", h.UserByPhone)
		})
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/", h.Enqueue)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("alarm-sms-dispatch"))
	})

	return r
}
