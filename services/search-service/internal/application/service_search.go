package application

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

type SearchInput struct {
	Query string
	Limit int
}

func (s *Service) Search(ctx context.Context, input SearchInput) (domain.SearchResult, error) {
	query := strings.ToLower(strings.Join(strings.Fields(input.Query), " "))
	if query == "" {
		return domain.SearchResult{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return domain.SearchResult{}, fmt.Errorf("%w: limit must be at most %d", domain.ErrInvalidInput, s.cfg.MaxLimit)
	}

	load := func(ctx context.Context) (domain.SearchResult, error) {
		docs, err := s.documents.Search(ctx, query, limit)
		if err != nil {
			return domain.SearchResult{}, err
		}
		return domain.SearchResult{Query: query, Limit: limit, Count: len(docs), Results: docs}, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	key, _ := s.cache.ListKey(ctx, cache.ScopeSearch, url.Values{
		"query": {query},
		"limit": {strconv.Itoa(limit)},
	})
	return cache.FetchJSON(ctx, s.cache, key, s.cfg.SearchTTL, load)
}
