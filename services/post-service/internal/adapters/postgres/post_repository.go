package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/services/post-service/internal/domain"
	"gorm.io/gorm"
)

type postRepository struct {
	db *gorm.DB
}

func (r *postRepository) Create(ctx context.Context, post domain.Post, evt *messaging.DomainEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := postFromDomain(post)
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: post %s already exists", domain.ErrConflict, post.ID)
			}
			return fmt.Errorf("insert post: %w", err)
		}
		return stageEvent(tx, evt)
	})
}

func (r *postRepository) Get(ctx context.Context, id string) (domain.Post, error) {
	var row postModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Post{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("get post: %w", err)
	}
	return row.toDomain(), nil
}

func (r *postRepository) List(ctx context.Context, offset, limit int) ([]domain.Post, int64, error) {
	db := r.db.WithContext(ctx)
	var total int64
	if err := db.Model(&postModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}
	var rows []postModel
	if err := db.Order("created_at desc").Order("id").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	out := make([]domain.Post, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, total, nil
}

func (r *postRepository) Update(ctx context.Context, post domain.Post, evt *messaging.DomainEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&postModel{}).Where("id = ?", post.ID).Updates(map[string]any{
			"content":    post.Content,
			"updated_at": post.UpdatedAt,
		})
		if res.Error != nil {
			return fmt.Errorf("update post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return stageEvent(tx, evt)
	})
}

func (r *postRepository) Delete(ctx context.Context, id string, evt *messaging.DomainEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&postModel{})
		if res.Error != nil {
			return fmt.Errorf("delete post: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return stageEvent(tx, evt)
	})
}

func stageEvent(tx *gorm.DB, evt *messaging.DomainEvent) error {
	if evt == nil {
		return nil
	}
	row := outboxFromEvent(*evt)
	if err := tx.Create(&row).Error; err != nil {
		return fmt.Errorf("stage %s event: %w", evt.RoutingKey, err)
	}
	return nil
}
