package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/socmed/platform/httpx"
	"github.com/viralforge/socmed/platform/identity"
	"github.com/viralforge/socmed/services/post-service/internal/application"
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
	r.Route("/v1/posts", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(identity.Optional)
			r.Get("/", handler.listPosts)
			r.Get("/{post_id}", handler.getPost)
		})
		r.Group(func(r chi.Router) {
			r.Use(identity.Required)
			r.Post("/", handler.createPost)
			r.Put("/{post_id}", handler.updatePost)
			r.Delete("/{post_id}", handler.deletePost)
		})
	})
	return r
}
