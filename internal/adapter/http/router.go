// Package http exposes the listing admin API over HTTP with chi.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/domain"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/listing/usecase"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/auth"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/metrics"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = domain.MaxFiles*domain.MaxFileSize + 1<<20
	// multipart parts above this are spooled to disk
	maxFormMemory = 32 << 20
)

type Config struct {
	Listings   *usecase.ListingUsecase
	Images     *usecase.ImageUsecase
	Taxonomy   domain.Taxonomy
	Verifier   *auth.Verifier
	CookieName string
	// Health reports whether the backing store is reachable.
	Health  func(ctx context.Context) error
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Handler struct {
	listings *usecase.ListingUsecase
	images   *usecase.ImageUsecase
	taxonomy domain.Taxonomy
	health   func(ctx context.Context) error
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   *logger.Logger
	tracer   trace.Tracer
}

func NewHandler(cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		listings: cfg.Listings,
		images:   cfg.Images,
		taxonomy: cfg.Taxonomy,
		health:   cfg.Health,
		validate: validator.New(),
		metrics:  cfg.Metrics,
		logger:   log.Named("Handler"),
		tracer:   otel.Tracer("annonce-service/http"),
	}
}

// NewRouter builds the API routes. Identity is resolved for every request;
// authorization happens in the usecases.
func NewRouter(cfg Config) http.Handler {
	h := NewHandler(cfg)
	log := h.logger

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(Metrics(cfg.Metrics))
	r.Use(Identity(cfg.Verifier, cfg.CookieName, log))

	r.Get("/healthz", h.Health)
	r.Get("/options", h.Options)

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", h.CreateListing)
		r.Get("/", h.QueryListings)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetListing)
			r.Patch("/", h.UpdateListing)
			r.Delete("/", h.DeleteListing)
			r.Patch("/status", h.SetStatus)
			r.Patch("/sponsor", h.SetSponsor)
			r.Get("/images", h.ListImages)
			r.Post("/images", h.AttachImages)
			r.Delete("/images", h.DetachImage)
		})
	})
	return r
}

// NewServer wraps the router in an http.Server with the service timeouts.
func NewServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}
