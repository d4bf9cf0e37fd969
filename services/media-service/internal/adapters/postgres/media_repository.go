package postgres

import (
	"context"
	"errors"

	"github.com/viralforge/socmed/services/media-service/internal/domain"
	"gorm.io/gorm"
)

type mediaRepository struct {
	db *gorm.DB
}

func (r *mediaRepository) Create(ctx context.Context, rec domain.MediaRecord) error {
	m := mediaFromDomain(rec)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *mediaRepository) Get(ctx context.Context, id string) (domain.MediaRecord, error) {
	var m mediaModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.MediaRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MediaRecord{}, err
	}
	return m.toDomain(), nil
}

func (r *mediaRepository) GetMany(ctx context.Context, ids []string) ([]domain.MediaRecord, error) {
	if len(ids) == 0 {
		return []domain.MediaRecord{}, nil
	}
	var rows []mediaModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

func (r *mediaRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.MediaRecord, error) {
	var rows []mediaModel
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainList(rows), nil
}

func (r *mediaRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&mediaModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDomainList(rows []mediaModel) []domain.MediaRecord {
	out := make([]domain.MediaRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out
}
