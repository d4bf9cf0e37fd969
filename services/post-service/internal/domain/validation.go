package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxContentLength = 5000
	MaxMediaRefs     = 10
)

func ValidateContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, MaxContentLength)
	}
	return nil
}

// NormalizeMediaIDs trims ids, drops blanks and duplicates, and keeps order.
func NormalizeMediaIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > MaxMediaRefs {
		return nil, fmt.Errorf("%w: at most %d media ids per post", ErrInvalidInput, MaxMediaRefs)
	}
	return out, nil
}
