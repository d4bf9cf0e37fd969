package application

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/platform/contracts"
	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/services/post-service/internal/domain"
)

const detailKind = "post"

func (s *Service) CreatePost(ctx context.Context, callerID string, input CreatePostInput) (domain.Post, error) {
	if strings.TrimSpace(callerID) == "" {
		return domain.Post{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateContent(input.Content); err != nil {
		return domain.Post{}, err
	}
	mediaIDs, err := domain.NormalizeMediaIDs(input.MediaIDs)
	if err != nil {
		return domain.Post{}, err
	}
	now := s.nowFn()
	post := domain.Post{
		ID:        uuid.NewString(),
		AuthorID:  callerID,
		Content:   strings.TrimSpace(input.Content),
		MediaIDs:  mediaIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}
	payload := contracts.PostCreatedPayload{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		Content:   post.Content,
		MediaIDs:  post.MediaIDs,
		CreatedAt: post.CreatedAt,
	}
	evt, err := s.stage(contracts.PostCreated, post.ID, payload, now)
	if err != nil {
		return domain.Post{}, err
	}
	if err := s.posts.Create(ctx, post, evt); err != nil {
		return domain.Post{}, err
	}
	s.afterCommit(ctx, contracts.PostCreated, post.ID, payload)
	return post, nil
}

func (s *Service) ListPosts(ctx context.Context, input ListPostsInput) (domain.PostPage, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return domain.PostPage{}, fmt.Errorf("%w: limit must be at most %d", domain.ErrInvalidInput, s.cfg.MaxLimit)
	}

	key := ""
	if s.cache != nil {
		key, _ = s.cache.ListKey(ctx, cache.ScopePosts, url.Values{
			"page":  {strconv.Itoa(page)},
			"limit": {strconv.Itoa(limit)},
		})
	}
	load := func(ctx context.Context) (domain.PostPage, error) {
		posts, total, err := s.posts.List(ctx, (page-1)*limit, limit)
		if err != nil {
			return domain.PostPage{}, err
		}
		return domain.PostPage{
			Posts:      posts,
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		}, nil
	}
	if s.cache == nil {
		return load(ctx)
	}
	return cache.FetchJSON(ctx, s.cache, key, s.cfg.ListTTL, load)
}

func (s *Service) GetPost(ctx context.Context, id string) (domain.Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Post{}, fmt.Errorf("%w: post id is required", domain.ErrInvalidInput)
	}
	if s.cache == nil {
		return s.posts.Get(ctx, id)
	}
	return cache.FetchJSON(ctx, s.cache, s.cache.Keys().Detail(detailKind, id), s.cfg.DetailTTL, func(ctx context.Context) (domain.Post, error) {
		return s.posts.Get(ctx, id)
	}, cache.GuardScope(cache.ScopePosts))
}

func (s *Service) UpdatePost(ctx context.Context, callerID, id string, input UpdatePostInput) (domain.Post, error) {
	if err := domain.ValidateContent(input.Content); err != nil {
		return domain.Post{}, err
	}
	post, err := s.ownedPost(ctx, callerID, id)
	if err != nil {
		return domain.Post{}, err
	}
	now := s.nowFn()
	post.Content = strings.TrimSpace(input.Content)
	post.UpdatedAt = now
	payload := contracts.PostUpdatedPayload{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		Content:   post.Content,
		MediaIDs:  post.MediaIDs,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
	}
	evt, err := s.stage(contracts.PostUpdated, post.ID, payload, now)
	if err != nil {
		return domain.Post{}, err
	}
	if err := s.posts.Update(ctx, post, evt); err != nil {
		return domain.Post{}, err
	}
	s.afterCommit(ctx, contracts.PostUpdated, post.ID, payload)
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, callerID, id string) error {
	post, err := s.ownedPost(ctx, callerID, id)
	if err != nil {
		return err
	}
	payload := contracts.PostDeletedPayload{
		PostID:   post.ID,
		AuthorID: post.AuthorID,
		MediaIDs: post.MediaIDs,
	}
	evt, err := s.stage(contracts.PostDeleted, post.ID, payload, s.nowFn())
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, post.ID, evt); err != nil {
		return err
	}
	s.afterCommit(ctx, contracts.PostDeleted, post.ID, payload)
	return nil
}

// ownedPost reads from the primary store, never the cache, so the author
// check sees committed state.
func (s *Service) ownedPost(ctx context.Context, callerID, id string) (domain.Post, error) {
	if strings.TrimSpace(callerID) == "" {
		return domain.Post{}, domain.ErrUnauthorized
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Post{}, fmt.Errorf("%w: post id is required", domain.ErrInvalidInput)
	}
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return domain.Post{}, err
	}
	if post.AuthorID != callerID {
		return domain.Post{}, fmt.Errorf("%w: only the author can change post %s", domain.ErrForbidden, id)
	}
	return post, nil
}

// stage builds the outbox event for a write. Direct delivery stages nothing.
func (s *Service) stage(routingKey, postID string, payload any, now time.Time) (*messaging.DomainEvent, error) {
	if s.cfg.Delivery != DeliveryOutbox {
		return nil, nil
	}
	evt, err := messaging.NewEvent(routingKey, postID, payload, now)
	if err != nil {
		return nil, err
	}
	evt = evt.WithSource(s.cfg.ServiceName)
	return &evt, nil
}

// afterCommit runs once the primary store accepted the write. Nothing here can
// fail the request.
func (s *Service) afterCommit(ctx context.Context, routingKey, postID string, payload any) {
	if s.cfg.Delivery == DeliveryOutbox {
		if s.relay != nil {
			s.relay.Kick()
		}
	} else if s.publisher != nil {
		s.publisher.Publish(ctx, routingKey, payload, messaging.WithPartitionKey(postID))
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, postID)
	}
	s.logger.InfoContext(ctx, "post mutation committed",
		"module", "application",
		"layer", "service",
		"operation", routingKey,
		"outcome", "success",
		"post_id", postID,
		"delivery", s.cfg.Delivery,
	)
}
