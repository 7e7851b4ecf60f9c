package gallery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store needs; pgxmock implements it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store interface {
	// InsertMemory stores m and fills in its ID and CreatedAt.
	InsertMemory(ctx context.Context, m *Memory) error
	ListMemories(ctx context.Context) ([]Memory, error)
	GetMemory(ctx context.Context, id string) (*Memory, error)
	DeleteMemory(ctx context.Context, id string) error

	InsertTrack(ctx context.Context, t *Track) error
	ListTracks(ctx context.Context) ([]Track, error)
	GetTrack(ctx context.Context, id string) (*Track, error)
	DeleteTrack(ctx context.Context, id string) error
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func AutoMigrate(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS memories(
          id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          title TEXT NOT NULL,
          description TEXT,
          image_url TEXT NOT NULL,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
  `)
	if err != nil {
		return fmt.Errorf("migrate memories: %w", err)
	}

	_, err = db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS music_tracks(
          id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          title TEXT NOT NULL,
          artist TEXT,
          audio_url TEXT NOT NULL,
          duration_ms INT NOT NULL DEFAULT 0,
          created_at TIMESTAMPTZ NOT NULL DEFAULT now()
      )
  `)
	if err != nil {
		return fmt.Errorf("migrate music_tracks: %w", err)
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_music_tracks_created_at ON music_tracks(created_at DESC)`,
	} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate indexes: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) InsertMemory(ctx context.Context, m *Memory) error {
	return s.db.QueryRow(ctx, `
      INSERT INTO memories (title, description, image_url)
      VALUES ($1, NULLIF($2, ''), $3)
      RETURNING id::text, created_at
  `, m.Title, m.Description, m.ImageURL).Scan(&m.ID, &m.CreatedAt)
}

func (s *PostgresStore) ListMemories(ctx context.Context) ([]Memory, error) {
	rows, err := s.db.Query(ctx, `
      SELECT id::text, title, COALESCE(description, ''), image_url, created_at
      FROM memories
      ORDER BY created_at DESC
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Memory, 0)
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.ImageURL, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetMemory(ctx context.Context, id string) (*Memory, error) {
	var m Memory
	err := s.db.QueryRow(ctx, `
      SELECT id::text, title, COALESCE(description, ''), image_url, created_at
      FROM memories
      WHERE id = $1
  `, id).Scan(&m.ID, &m.Title, &m.Description, &m.ImageURL, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) DeleteMemory(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM memories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) InsertTrack(ctx context.Context, t *Track) error {
	return s.db.QueryRow(ctx, `
      INSERT INTO music_tracks (title, artist, audio_url, duration_ms)
      VALUES ($1, NULLIF($2, ''), $3, $4)
      RETURNING id::text, created_at
  `, t.Title, t.Artist, t.AudioURL, t.DurationMs).Scan(&t.ID, &t.CreatedAt)
}

func (s *PostgresStore) ListTracks(ctx context.Context) ([]Track, error) {
	rows, err := s.db.Query(ctx, `
      SELECT id::text, title, COALESCE(artist, ''), audio_url, duration_ms, created_at
      FROM music_tracks
      ORDER BY created_at DESC
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Track, 0)
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.AudioURL, &t.DurationMs, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTrack(ctx context.Context, id string) (*Track, error) {
	var t Track
	err := s.db.QueryRow(ctx, `
      SELECT id::text, title, COALESCE(artist, ''), audio_url, duration_ms, created_at
      FROM music_tracks
      WHERE id = $1
  `, id).Scan(&t.ID, &t.Title, &t.Artist, &t.AudioURL, &t.DurationMs, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) DeleteTrack(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM music_tracks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
