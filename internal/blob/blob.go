// Package blob stores uploaded media files in named buckets and hands back
// the public URL each file is served from.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidName = errors.New("blob: invalid bucket or name")

type Store interface {
	// Upload writes body as bucket/name and returns its public URL.
	Upload(ctx context.Context, bucket, name string, body io.Reader, contentType string) (string, error)
	// Delete removes bucket/name. Deleting a missing blob is not an error.
	Delete(ctx context.Context, bucket, name string) error
	PublicURL(bucket, name string) string
}

// NewName returns a collision-free blob name for an upload called filename:
// "<unix-millis>-<uuid>.<ext>" with the extension lower-cased.
func NewName(filename string, now time.Time) string {
	name := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" || strings.ContainsAny(ext, `/\ `) {
		return name
	}
	return name + "." + ext
}

// NameFromURL derives the blob name from the last path segment of a public
// URL. It returns "" when there is none.
func NameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return ""
	}
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, 0)
}

func checkNames(bucket, name string) error {
	if !validSegment(bucket) || !validSegment(name) {
		return fmt.Errorf("%w: %q/%q", ErrInvalidName, bucket, name)
	}
	return nil
}
