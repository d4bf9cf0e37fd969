package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/socmed/platform/httpx"
	"github.com/viralforge/socmed/platform/identity"
	"github.com/viralforge/socmed/services/search-service/internal/application"
)

type Handler struct {
	service *application.Service
	logger  *slog.Logger
}

func NewHandler(service *application.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger.With("module", "http", "layer", "adapter")}
}

func NewRouter(handler *Handler) http.Handler {
	r := httpx.NewRouter(handler.logger)
	r.Route("/v1/search", func(r chi.Router) {
		r.Use(identity.Required)
		r.Get("/", handler.search)
	})
	return r
}
