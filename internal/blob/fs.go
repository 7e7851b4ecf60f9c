package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps each bucket as a directory under Root. Files are served by
// the gallery HTTP server under /media/{bucket}/{name}.
type FSStore struct {
	Root    string
	BaseURL string
}

func NewFSStore(root, baseURL string) *FSStore {
	return &FSStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *FSStore) Upload(ctx context.Context, bucket, name string, body io.Reader, contentType string) (string, error) {
	if err := checkNames(bucket, name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.Root, bucket)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("blob: mkdir %s: %w", bucket, err)
	}

	// Write to a temp file first so a failed copy never leaves a partial blob
	// under its final name.
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("blob: create temp: %w", err)
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: write %s/%s: %w", bucket, name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: close %s/%s: %w", bucket, name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("blob: rename %s/%s: %w", bucket, name, err)
	}
	return s.PublicURL(bucket, name), nil
}

func (s *FSStore) Delete(ctx context.Context, bucket, name string) error {
	if err := checkNames(bucket, name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.Root, bucket, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob: delete %s/%s: %w", bucket, name, err)
	}
	return nil
}

func (s *FSStore) PublicURL(bucket, name string) string {
	return s.BaseURL + "/media/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

// Open returns the stored file for serving. Temp files from in-flight
// uploads are not reachable.
func (s *FSStore) Open(bucket, name string) (*os.File, error) {
	if err := checkNames(bucket, name); err != nil {
		return nil, err
	}
	if strings.HasPrefix(name, ".") {
		return nil, fs.ErrNotExist
	}
	f, err := os.Open(filepath.Join(s.Root, bucket, name))
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err != nil || st.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
