package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

func Routes(h *Handler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// request logger after RequestID
	r.Use(RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/executions", func(r chi.Router) {
		r.Post("/checkin", h.CheckIn)
		r.Get("/", h.ListExecutions)
		r.Get("/stalled", h.ListStalled)
		r.Get("/{id}", h.GetExecution)
		r.Post("/{id}/pause", h.Pause)
		r.Post("/{id}/resume", h.Resume)
		r.Post("/{id}/checkout", h.CheckOut)
	})

	r.Get("/reports/productivity", h.ProductivityReport)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
