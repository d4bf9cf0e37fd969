package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

type UploadInput struct {
	Filename string
	Body     []byte
}

func newMediaID() string { return uuid.NewString() }

// Upload sniffs the body, stores the bytes and then the record. A failed
// record write removes the stored object again.
func (s *Service) Upload(ctx context.Context, callerID string, input UploadInput) (domain.MediaRecord, error) {
	if strings.TrimSpace(callerID) == "" {
		return domain.MediaRecord{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateSize(len(input.Body)); err != nil {
		return domain.MediaRecord{}, err
	}
	detected := mimetype.Detect(input.Body)
	if err := domain.ValidateMimeType(detected.String()); err != nil {
		return domain.MediaRecord{}, err
	}

	id := s.newID()
	rec := domain.MediaRecord{
		ID:           id,
		OwnerID:      callerID,
		StorageRef:   fmt.Sprintf("%s/%s%s", callerID, id, detected.Extension()),
		MimeType:     strings.TrimSpace(strings.Split(detected.String(), ";")[0]),
		OriginalName: domain.CleanName(input.Filename),
		SizeBytes:    int64(len(input.Body)),
		CreatedAt:    s.nowFn(),
	}
	if err := s.storage.Put(ctx, rec.StorageRef, bytes.NewReader(input.Body)); err != nil {
		return domain.MediaRecord{}, fmt.Errorf("%w: store object: %v", domain.ErrDependencyUnavailable, err)
	}
	if err := s.media.Create(ctx, rec); err != nil {
		if derr := s.storage.Delete(ctx, rec.StorageRef); derr != nil {
			s.logger.WarnContext(ctx, "orphaned media object",
				"module", "media",
				"layer", "application",
				"operation", "upload",
				"storage_ref", rec.StorageRef,
				"error", derr.Error(),
			)
		}
		return domain.MediaRecord{}, err
	}
	s.logger.InfoContext(ctx, "media uploaded",
		"module", "media",
		"layer", "application",
		"operation", "upload",
		"outcome", "success",
		"media_id", rec.ID,
		"mime_type", rec.MimeType,
		"size_bytes", rec.SizeBytes,
	)
	return rec, nil
}

func (s *Service) GetMedia(ctx context.Context, id string) (domain.MediaRecord, error) {
	if strings.TrimSpace(id) == "" {
		return domain.MediaRecord{}, fmt.Errorf("%w: media id is required", domain.ErrInvalidInput)
	}
	return s.media.Get(ctx, id)
}

// OpenMedia returns the record and a reader over its bytes. The caller closes it.
func (s *Service) OpenMedia(ctx context.Context, id string) (domain.MediaRecord, io.ReadCloser, error) {
	rec, err := s.GetMedia(ctx, id)
	if err != nil {
		return domain.MediaRecord{}, nil, err
	}
	body, err := s.storage.Open(ctx, rec.StorageRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MediaRecord{}, nil, err
		}
		return domain.MediaRecord{}, nil, fmt.Errorf("%w: open object: %v", domain.ErrDependencyUnavailable, err)
	}
	return rec, body, nil
}

func (s *Service) ListMine(ctx context.Context, callerID string) (domain.MediaList, error) {
	if strings.TrimSpace(callerID) == "" {
		return domain.MediaList{}, domain.ErrUnauthorized
	}
	items, err := s.media.ListByOwner(ctx, callerID)
	if err != nil {
		return domain.MediaList{}, err
	}
	return domain.MediaList{Media: items, Count: len(items)}, nil
}
