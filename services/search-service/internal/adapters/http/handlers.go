package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/viralforge/socmed/platform/httpx"
	"github.com/viralforge/socmed/services/search-service/internal/application"
)

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	out, err := h.service.Search(r.Context(), application.SearchInput{Query: q.Get("query"), Limit: limit})
	if err != nil {
		httpx.Fail(r.Context(), w, h.logger, mapDomainError, "search", err)
		return
	}
	httpx.Success(w, http.StatusOK, out)
}
