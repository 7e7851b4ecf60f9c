package main

import (
	"context"

	"gallery-service/internal/gallery"
	"gallery-service/internal/player"
)

// lateSource is the hub's track source. lib is set once during startup,
// before the hub runs.
type lateSource struct {
	lib *gallery.Library
}

func (s *lateSource) ListTracks(ctx context.Context) ([]player.Track, error) {
	if s.lib == nil {
		return nil, nil
	}
	return s.lib.ListTracks(ctx)
}
