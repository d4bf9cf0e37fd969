package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/socmed/platform/httpx"
	"github.com/viralforge/socmed/platform/identity"
	"github.com/viralforge/socmed/services/post-service/internal/application"
)

const maxBodyBytes = 64 << 10

type createPostRequest struct {
	Content  string   `json:"content"`
	MediaIDs []string `json:"mediaIds"`
}

type updatePostRequest struct {
	Content string `json:"content"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !h.decode(w, r, &req) {
		return
	}
	caller, _ := identity.CallerFrom(r.Context())
	post, err := h.service.CreatePost(r.Context(), caller, application.CreatePostInput{
		Content:  req.Content,
		MediaIDs: req.MediaIDs,
	})
	if err != nil {
		h.fail(r.Context(), w, "create_post", err)
		return
	}
	httpx.Success(w, http.StatusCreated, post)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	out, err := h.service.ListPosts(r.Context(), application.ListPostsInput{Page: page, Limit: limit})
	if err != nil {
		h.fail(r.Context(), w, "list_posts", err)
		return
	}
	httpx.Success(w, http.StatusOK, out)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "post_id"))
	if err != nil {
		h.fail(r.Context(), w, "get_post", err)
		return
	}
	httpx.Success(w, http.StatusOK, post)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	var req updatePostRequest
	if !h.decode(w, r, &req) {
		return
	}
	caller, _ := identity.CallerFrom(r.Context())
	post, err := h.service.UpdatePost(r.Context(), caller, chi.URLParam(r, "post_id"), application.UpdatePostInput{Content: req.Content})
	if err != nil {
		h.fail(r.Context(), w, "update_post", err)
		return
	}
	httpx.Success(w, http.StatusOK, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.CallerFrom(r.Context())
	if err := h.service.DeletePost(r.Context(), caller, chi.URLParam(r, "post_id")); err != nil {
		h.fail(r.Context(), w, "delete_post", err)
		return
	}
	httpx.Message(w, http.StatusOK, "post deleted")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		httpx.Error(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	httpx.Fail(ctx, w, h.logger, mapDomainError, operation, err)
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		httpx.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
