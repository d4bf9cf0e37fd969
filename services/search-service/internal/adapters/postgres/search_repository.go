package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/viralforge/socmed/services/search-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type searchRepository struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// lockPost serializes projection writes for one post across subscriptions
// for the rest of the transaction.
func lockPost(tx *gorm.DB, postID string) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", postID).Error
}

func (r *searchRepository) ApplyUpsert(ctx context.Context, doc domain.SearchDocument) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, doc.PostID); err != nil {
			return fmt.Errorf("lock post: %w", err)
		}
		var tombstones int64
		if err := tx.Model(&tombstoneModel{}).
			Where("post_id = ? AND deleted_at >= ?", doc.PostID, doc.SourceEmittedAt).
			Count(&tombstones).Error; err != nil {
			return fmt.Errorf("check tombstone: %w", err)
		}
		if tombstones > 0 {
			return nil
		}
		row := searchDocumentModel{
			PostID:          doc.PostID,
			AuthorID:        doc.AuthorID,
			Content:         doc.Content,
			CreatedAt:       doc.CreatedAt,
			SourceEmittedAt: doc.SourceEmittedAt,
			UpdatedAt:       r.nowFn(),
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"author_id", "content", "created_at", "source_emitted_at", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "search_documents.source_emitted_at <= excluded.source_emitted_at"},
			}},
		}).Create(&row)
		if res.Error != nil {
			return fmt.Errorf("upsert search document: %w", res.Error)
		}
		applied = res.RowsAffected > 0
		return nil
	})
	return applied, err
}

func (r *searchRepository) ApplyDelete(ctx context.Context, tomb domain.Tombstone) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, tomb.PostID); err != nil {
			return fmt.Errorf("lock post: %w", err)
		}
		row := tombstoneModel{PostID: tomb.PostID, DeletedAt: tomb.DeletedAt, ExpiresAt: tomb.ExpiresAt}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "post_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"deleted_at": gorm.Expr("GREATEST(search_tombstones.deleted_at, excluded.deleted_at)"),
				"expires_at": gorm.Expr("GREATEST(search_tombstones.expires_at, excluded.expires_at)"),
			}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("write tombstone: %w", err)
		}
		res := tx.Where("post_id = ? AND source_emitted_at <= ?", tomb.PostID, tomb.DeletedAt).
			Delete(&searchDocumentModel{})
		if res.Error != nil {
			return fmt.Errorf("delete search document: %w", res.Error)
		}
		removed = res.RowsAffected > 0
		return nil
	})
	return removed, err
}

// Search ranks with ts_rank over the english text-search configuration. Every
// query term must match, as with plainto_tsquery.
func (r *searchRepository) Search(ctx context.Context, query string, limit int) ([]domain.SearchDocument, error) {
	var rows []searchDocumentModel
	err := r.db.WithContext(ctx).
		Select("*, ts_rank(to_tsvector('english', content), plainto_tsquery('english', ?)) AS score", query).
		Where("to_tsvector('english', content) @@ plainto_tsquery('english', ?)", query).
		Order("score DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	out := make([]domain.SearchDocument, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *searchRepository) PurgeTombstones(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&tombstoneModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge tombstones: %w", res.Error)
	}
	return res.RowsAffected, nil
}
