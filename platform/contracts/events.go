// Package contracts defines the routing keys and payloads exchanged between
// services over the socmed_events exchange.
package contracts

import (
	"errors"
	"strings"
	"time"
)

const (
	PostCreated = "post.created"
	PostUpdated = "post.updated"
	PostDeleted = "post.deleted"
)

var ErrInvalidPayload = errors.New("invalid event payload")

type PostCreatedPayload struct {
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"mediaIds"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p PostCreatedPayload) Validate() error {
	if strings.TrimSpace(p.PostID) == "" || strings.TrimSpace(p.AuthorID) == "" {
		return errors.Join(ErrInvalidPayload, errors.New("post.created requires postId and authorId"))
	}
	return nil
}

type PostUpdatedPayload struct {
	PostID    string    `json:"postId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"mediaIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p PostUpdatedPayload) Validate() error {
	if strings.TrimSpace(p.PostID) == "" || strings.TrimSpace(p.AuthorID) == "" {
		return errors.Join(ErrInvalidPayload, errors.New("post.updated requires postId and authorId"))
	}
	return nil
}

type PostDeletedPayload struct {
	PostID   string   `json:"postId"`
	AuthorID string   `json:"authorId"`
	MediaIDs []string `json:"mediaIds"`
}

func (p PostDeletedPayload) Validate() error {
	if strings.TrimSpace(p.PostID) == "" {
		return errors.Join(ErrInvalidPayload, errors.New("post.deleted requires postId"))
	}
	return nil
}
