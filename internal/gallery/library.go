package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gallery-service/internal/blob"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Library is the media repository: every write touches the blob store and
// the row store and is announced through the publisher.
type Library struct {
	store  Store
	blobs  blob.Store
	pub    Publisher
	logger *log.Logger

	now   func() time.Time
	probe func(r io.ReadSeeker, filename, contentType string) time.Duration
}

func NewLibrary(store Store, blobs blob.Store, pub Publisher, logger *log.Logger) *Library {
	if pub == nil {
		pub = nopPublisher{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Library{
		store:  store,
		blobs:  blobs,
		pub:    pub,
		logger: logger,
		now:    time.Now,
		probe:  probeDuration,
	}
}

func (l *Library) AddMemory(ctx context.Context, up Upload, title, description string) (*Memory, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if err := requireUpload(up, title); err != nil {
		return nil, err
	}
	if err := checkLen("title", title, maxTitleLen); err != nil {
		return nil, err
	}
	if err := checkLen("description", description, maxDescriptionLen); err != nil {
		return nil, err
	}

	name := blob.NewName(up.Filename, l.now())
	url, err := l.blobs.Upload(ctx, BucketMemories, name, up.Body, contentType(up))
	if err != nil {
		return nil, &RepositoryError{Op: "upload", Err: err}
	}

	m := &Memory{Title: title, Description: description, ImageURL: url}
	if err := l.store.InsertMemory(ctx, m); err != nil {
		l.discard(ctx, BucketMemories, name)
		return nil, &RepositoryError{Op: "insert", Err: err}
	}

	l.pub.Publish(ctx, EventMemoryAdded, m)
	return m, nil
}

func (l *Library) AddTrack(ctx context.Context, up Upload, title, artist string) (*Track, error) {
	title = strings.TrimSpace(title)
	artist = strings.TrimSpace(artist)

	if err := requireUpload(up, title); err != nil {
		return nil, err
	}
	if err := checkLen("title", title, maxTitleLen); err != nil {
		return nil, err
	}
	if err := checkLen("artist", artist, maxArtistLen); err != nil {
		return nil, err
	}

	ct := contentType(up)
	duration := l.probe(up.Body, up.Filename, ct)
	if _, err := up.Body.Seek(0, io.SeekStart); err != nil {
		return nil, &RepositoryError{Op: "upload", Err: fmt.Errorf("rewind upload: %w", err)}
	}

	name := blob.NewName(up.Filename, l.now())
	url, err := l.blobs.Upload(ctx, BucketMusic, name, up.Body, ct)
	if err != nil {
		return nil, &RepositoryError{Op: "upload", Err: err}
	}

	t := &Track{
		Title:      title,
		Artist:     artist,
		AudioURL:   url,
		DurationMs: int(duration.Milliseconds()),
	}
	if err := l.store.InsertTrack(ctx, t); err != nil {
		l.discard(ctx, BucketMusic, name)
		return nil, &RepositoryError{Op: "insert", Err: err}
	}

	l.pub.Publish(ctx, EventTrackAdded, t)
	return t, nil
}

// ListMemories returns all memories, newest first.
func (l *Library) ListMemories(ctx context.Context) ([]Memory, error) {
	out, err := l.store.ListMemories(ctx)
	if err != nil {
		return nil, &RepositoryError{Op: "list", Err: err}
	}
	return out, nil
}

// ListTracks returns all tracks, newest first.
func (l *Library) ListTracks(ctx context.Context) ([]Track, error) {
	out, err := l.store.ListTracks(ctx)
	if err != nil {
		return nil, &RepositoryError{Op: "list", Err: err}
	}
	return out, nil
}

// DeleteMemory removes the memory's image and then its row. The row is
// removed even when the image is not; that case returns a *CleanupError.
func (l *Library) DeleteMemory(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	m, err := l.store.GetMemory(ctx, id)
	if err != nil {
		return lookupError(err)
	}

	cleanupErr := l.removeBlob(ctx, BucketMemories, m.ImageURL)

	if err := l.store.DeleteMemory(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &RepositoryError{Op: "delete", Err: err}
	}

	l.pub.Publish(ctx, EventMemoryDeleted, deletedPayload{ID: id})
	if cleanupErr != nil {
		return cleanupErr
	}
	return nil
}

// DeleteTrack mirrors DeleteMemory for music_tracks.
func (l *Library) DeleteTrack(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	t, err := l.store.GetTrack(ctx, id)
	if err != nil {
		return lookupError(err)
	}

	cleanupErr := l.removeBlob(ctx, BucketMusic, t.AudioURL)

	if err := l.store.DeleteTrack(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &RepositoryError{Op: "delete", Err: err}
	}

	l.pub.Publish(ctx, EventTrackDeleted, deletedPayload{ID: id})
	if cleanupErr != nil {
		return cleanupErr
	}
	return nil
}

func (l *Library) removeBlob(ctx context.Context, bucket, url string) *CleanupError {
	name := blob.NameFromURL(url)
	if name == "" {
		return &CleanupError{Bucket: bucket, Err: fmt.Errorf("no blob name in %q", url)}
	}
	if err := l.blobs.Delete(ctx, bucket, name); err != nil {
		l.logger.Warn("delete blob", "bucket", bucket, "name", name, "err", err)
		return &CleanupError{Bucket: bucket, Name: name, Err: err}
	}
	return nil
}

// discard removes a blob whose row could not be written.
func (l *Library) discard(ctx context.Context, bucket, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := l.blobs.Delete(ctx, bucket, name); err != nil {
		l.logger.Error("discard orphan blob", "bucket", bucket, "name", name, "err", err)
	}
}

func requireUpload(up Upload, title string) error {
	if up.Body == nil {
		return &ValidationError{Field: "file", Msg: "file is required"}
	}
	if title == "" {
		return &ValidationError{Field: "title", Msg: "title is required"}
	}
	return nil
}

func checkLen(field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return &ValidationError{Field: field, Msg: fmt.Sprintf("%s must be at most %d characters", field, max)}
	}
	return nil
}

// audioTypes covers extensions missing from Go's built-in MIME table.
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
}

func contentType(up Upload) string {
	if up.ContentType != "" && up.ContentType != "application/octet-stream" {
		return up.ContentType
	}
	ext := strings.ToLower(filepath.Ext(up.Filename))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return up.ContentType
}

func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	return &RepositoryError{Op: "get", Err: err}
}
