package events

import (
	"context"
	"errors"

	"github.com/viralforge/socmed/platform/contracts"
	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/services/search-service/internal/application"
	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

type Handlers struct {
	service *application.Service
}

func NewHandlers(service *application.Service) *Handlers {
	return &Handlers{service: service}
}

// Register binds one subscription per post event. lanes > 1 spreads each
// subscription over partition lanes; events for one post keep their order.
func (h *Handlers) Register(consumer *messaging.Consumer, lanes int, opts ...messaging.SubscribeOption) error {
	routes := []struct {
		pattern string
		handler messaging.HandlerFunc
	}{
		{contracts.PostCreated, h.PostCreated},
		{contracts.PostUpdated, h.PostUpdated},
		{contracts.PostDeleted, h.PostDeleted},
	}
	for _, route := range routes {
		subOpts := append([]messaging.SubscribeOption{messaging.WithConcurrency(lanes)}, opts...)
		if err := consumer.Subscribe(route.pattern, route.handler, subOpts...); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handlers) PostCreated(ctx context.Context, evt messaging.DomainEvent) messaging.Result {
	var p contracts.PostCreatedPayload
	if err := evt.Decode(&p); err != nil {
		return messaging.Reject(err)
	}
	if err := p.Validate(); err != nil {
		return messaging.Reject(err)
	}
	return result(h.service.UpsertDocument(ctx, meta(evt), domain.SearchDocument{
		PostID:    p.PostID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}))
}

func (h *Handlers) PostUpdated(ctx context.Context, evt messaging.DomainEvent) messaging.Result {
	var p contracts.PostUpdatedPayload
	if err := evt.Decode(&p); err != nil {
		return messaging.Reject(err)
	}
	if err := p.Validate(); err != nil {
		return messaging.Reject(err)
	}
	return result(h.service.UpsertDocument(ctx, meta(evt), domain.SearchDocument{
		PostID:    p.PostID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
	}))
}

func (h *Handlers) PostDeleted(ctx context.Context, evt messaging.DomainEvent) messaging.Result {
	var p contracts.PostDeletedPayload
	if err := evt.Decode(&p); err != nil {
		return messaging.Reject(err)
	}
	if err := p.Validate(); err != nil {
		return messaging.Reject(err)
	}
	return result(h.service.DeleteDocument(ctx, meta(evt), p.PostID))
}

func meta(evt messaging.DomainEvent) domain.EventMeta {
	return domain.EventMeta{ID: evt.ID, RoutingKey: evt.RoutingKey, EmittedAt: evt.EmittedAt}
}

func result(err error) messaging.Result {
	switch {
	case err == nil:
		return messaging.Ack()
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedEvent):
		return messaging.Reject(err)
	default:
		return messaging.Retry(err)
	}
}
