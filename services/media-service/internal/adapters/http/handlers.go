package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/socmed/platform/httpx"
	"github.com/viralforge/socmed/platform/identity"
	"github.com/viralforge/socmed/services/media-service/internal/application"
	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

// HeaderFileName carries the client's file name on raw-body uploads.
const HeaderFileName = "X-File-Name"

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, domain.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(r.Context(), w, "upload_media", domain.ErrPayloadTooLarge)
			return
		}
		httpx.Error(w, http.StatusBadRequest, "INVALID_BODY", "could not read request body")
		return
	}
	name := r.Header.Get(HeaderFileName)
	if name == "" {
		name = r.URL.Query().Get("name")
	}
	caller, _ := identity.CallerFrom(r.Context())
	rec, err := h.service.Upload(r.Context(), caller, application.UploadInput{Filename: name, Body: body})
	if err != nil {
		h.fail(r.Context(), w, "upload_media", err)
		return
	}
	httpx.Success(w, http.StatusCreated, rec)
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.CallerFrom(r.Context())
	out, err := h.service.ListMine(r.Context(), caller)
	if err != nil {
		h.fail(r.Context(), w, "list_media", err)
		return
	}
	httpx.Success(w, http.StatusOK, out)
}

func (h *Handler) getMedia(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.GetMedia(r.Context(), chi.URLParam(r, "media_id"))
	if err != nil {
		h.fail(r.Context(), w, "get_media", err)
		return
	}
	httpx.Success(w, http.StatusOK, rec)
}

func (h *Handler) content(w http.ResponseWriter, r *http.Request) {
	rec, body, err := h.service.OpenMedia(r.Context(), chi.URLParam(r, "media_id"))
	if err != nil {
		h.fail(r.Context(), w, "get_media_content", err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	httpx.Fail(ctx, w, h.logger, mapDomainError, operation, err)
}
