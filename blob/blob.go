// Package blob defines the object-store contract used for uploaded photos.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

var (
	ErrEmptyName = errors.New("blob: object name is required")
	ErrEmptyData = errors.New("blob: object data is empty")
)

// Store accepts a name and a byte buffer and returns a dereferenceable
// address for the stored object.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// ObjectName derives a stored object name from an upload's original file
// name: "<unix-millis>-<base name>". Path components and whitespace are
// stripped so the name is safe for both container and filesystem backends.
func ObjectName(at time.Time, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '\t':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, base)
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%d-%s", at.UnixMilli(), base)
}

// Validate checks the common Put preconditions.
func Validate(name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(data) == 0 {
		return ErrEmptyData
	}
	return nil
}
