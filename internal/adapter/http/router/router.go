package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/http/handler"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/adapter/http/middleware"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/platform/metrics"
)

// New builds the catalog API. Reads are public; writes need a seller token. m may be nil.
func New(h *handler.ListingHandler, jwtSecret string, log *logger.Logger, m *metrics.MetricsManager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(log))
	if m != nil {
		r.Use(middleware.Metrics(m))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/api/listings", h.HandleListListings)
	r.Get("/api/listing/{id}", h.HandleGetListing)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtSecret, log))

		r.Post("/api/listing", h.HandleCreateListing)
		r.Put("/api/listing/{id}", h.HandleUpdateListing)
		r.Delete("/api/listing/{id}", h.HandleDeleteListing)
		r.Post("/api/upload", h.HandleUpload)
	})
	return r
}
