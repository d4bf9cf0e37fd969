package domain

import "time"

type MediaRecord struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	StorageRef   string    `json:"storageRef"`
	MimeType     string    `json:"mimeType"`
	OriginalName string    `json:"originalName"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
}

type MediaList struct {
	Media []MediaRecord `json:"media"`
	Count int           `json:"count"`
}

type EventMeta struct {
	ID         string
	RoutingKey string
	EmittedAt  time.Time
}

// CleanupReport describes what one post.deleted event removed.
type CleanupReport struct {
	Deleted []string
	Missing []string
	Skipped []string
}
