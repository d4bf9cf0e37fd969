package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	MaxUploadBytes  = 5 << 20
	MaxNameLength   = 255
	defaultBaseName = "upload"
)

// ValidateMimeType accepts image and video types only.
func ValidateMimeType(mimeType string) error {
	base, _, _ := strings.Cut(mimeType, ";")
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "image/") || strings.HasPrefix(base, "video/") {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMediaType, base)
}

func ValidateSize(size int) error {
	if size == 0 {
		return fmt.Errorf("%w: no file uploaded", ErrInvalidInput)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: upload exceeds %d bytes", ErrPayloadTooLarge, MaxUploadBytes)
	}
	return nil
}

// CleanName keeps the base name of a client supplied file name.
func CleanName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return defaultBaseName
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	return name
}
