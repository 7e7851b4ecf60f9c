// Package player implements the playlist player: which track is active,
// whether it is playing, and the user-visible progress and volume.
package player

import (
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// NoTrack is the CurrentIndex of a player whose playlist is empty.
const NoTrack = -1

// DefaultVolume is the volume percent of a freshly created player.
const DefaultVolume = 70.0

var (
	ErrNoTracks     = errors.New("playlist is empty")
	ErrTrackIndex   = errors.New("track index out of range")
	ErrUnknownTrack = errors.New("track is not in the playlist")
	ErrPercentRange = errors.New("percent must be between 0 and 100")

	// errUnchanged lets a mutation skip subscriber notification.
	errUnchanged = errors.New("unchanged")
)

// Track is an audio item as the player sees it. Tracks are treated as
// immutable once handed to the player.
type Track struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist,omitempty"`
	AudioURL   string    `json:"audioUrl"`
	DurationMs int       `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// State is the complete mutable state of a Player.
type State struct {
	CurrentIndex int     `json:"currentIndex"`
	IsPlaying    bool    `json:"isPlaying"`
	Progress     float64 `json:"progress"`
	Volume       float64 `json:"volume"`
}

// Snapshot is what subscribers receive after every mutation.
type Snapshot struct {
	State      State  `json:"state"`
	Track      *Track `json:"track"`
	TrackCount int    `json:"trackCount"`
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Player owns PlayerState for one listening session. All methods are safe
// for concurrent use.
type Player struct {
	mu        sync.Mutex
	tracks    []Track
	state     State
	transport Transport
	logger    *log.Logger

	// loadID identifies the source last handed to the transport.
	loadID uint64

	subs    []subscriber
	nextSub int
}

type Option func(*Player)

func WithLogger(l *log.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a player positioned on the first track (or on NoTrack for an
// empty list), paused, with zero progress and the default volume. The first
// track is loaded into the transport without starting it.
func New(tracks []Track, transport Transport, opts ...Option) *Player {
	if transport == nil {
		transport = nopTransport{}
	}
	p := &Player{
		tracks:    cloneTracks(tracks),
		transport: transport,
		logger:    log.New(io.Discard),
		state: State{
			CurrentIndex: NoTrack,
			Volume:       DefaultVolume,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.tracks) > 0 {
		p.state.CurrentIndex = 0
	}

	p.mu.Lock()
	if err := p.transport.SetVolume(p.state.Volume / 100); err != nil {
		p.failLocked("volume", err)
	}
	p.loadCurrentLocked()
	p.mu.Unlock()
	return p
}

// State returns a copy of the current state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Tracks returns a copy of the playlist.
func (p *Player) Tracks() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneTracks(p.tracks)
}

// Subscribe registers fn to be called with a Snapshot after every state
// change. fn runs outside the player's lock. The returned func cancels the
// subscription.
func (p *Player) Subscribe(fn func(Snapshot)) (cancel func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs = append(p.subs, subscriber{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.subs {
			if s.id == id {
				p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// TogglePlayPause starts or stops the current track.
func (p *Player) TogglePlayPause() error {
	return p.mutate(func() error {
		if len(p.tracks) == 0 {
			return ErrNoTracks
		}
		p.state.IsPlaying = !p.state.IsPlaying
		if p.state.IsPlaying {
			if err := p.transport.Play(); err != nil {
				p.failLocked("play", err)
			}
		} else if err := p.transport.Pause(); err != nil {
			p.failLocked("pause", err)
		}
		return nil
	})
}

// SelectTrack makes track i current and starts playing it from the start.
func (p *Player) SelectTrack(i int) error {
	return p.mutate(func() error {
		if len(p.tracks) == 0 {
			return ErrNoTracks
		}
		if i < 0 || i >= len(p.tracks) {
			return ErrTrackIndex
		}
		p.state.CurrentIndex = i
		p.state.IsPlaying = true
		p.state.Progress = 0
		p.loadCurrentLocked()
		return nil
	})
}

// SelectTrackID is SelectTrack for the track with the given id, wherever
// it currently sits in the playlist.
func (p *Player) SelectTrackID(id string) error {
	return p.mutate(func() error {
		if len(p.tracks) == 0 {
			return ErrNoTracks
		}
		i := indexOf(p.tracks, id)
		if i < 0 {
			return ErrUnknownTrack
		}
		p.state.CurrentIndex = i
		p.state.IsPlaying = true
		p.state.Progress = 0
		p.loadCurrentLocked()
		return nil
	})
}

// Next advances to the following track, wrapping to the first. The playing
// flag is left as it was.
func (p *Player) Next() error {
	return p.mutate(func() error {
		n := len(p.tracks)
		if n == 0 {
			return ErrNoTracks
		}
		p.state.CurrentIndex = (p.state.CurrentIndex + 1) % n
		p.state.Progress = 0
		p.loadCurrentLocked()
		return nil
	})
}

// Previous rewinds to the preceding track, wrapping to the last.
func (p *Player) Previous() error {
	return p.mutate(func() error {
		n := len(p.tracks)
		if n == 0 {
			return ErrNoTracks
		}
		p.state.CurrentIndex = (p.state.CurrentIndex - 1 + n) % n
		p.state.Progress = 0
		p.loadCurrentLocked()
		return nil
	})
}

// OnTimeUpdate recomputes progress from the transport's clock. It is called
// at high frequency and only notifies subscribers when progress moves.
func (p *Player) OnTimeUpdate(elapsed, duration float64) {
	p.OnTimeUpdateFor(0, elapsed, duration)
}

// OnTimeUpdateFor is OnTimeUpdate for a report tagged with the load id the
// transport received. Reports about an earlier load are dropped; id 0 is
// never stale.
func (p *Player) OnTimeUpdateFor(id uint64, elapsed, duration float64) {
	_ = p.mutate(func() error {
		if len(p.tracks) == 0 || p.staleLocked(id) {
			return errUnchanged
		}
		progress := progressPercent(elapsed, duration)
		if progress == p.state.Progress {
			return errUnchanged
		}
		p.state.Progress = progress
		return nil
	})
}

// OnTrackEnded handles natural completion: continue with the next track, or
// stop on the first track after the last one finished.
func (p *Player) OnTrackEnded() {
	p.OnTrackEndedFor(0)
}

// OnTrackEndedFor is OnTrackEnded tagged with a load id, see OnTimeUpdateFor.
func (p *Player) OnTrackEndedFor(id uint64) {
	_ = p.mutate(func() error {
		n := len(p.tracks)
		if n == 0 || p.staleLocked(id) {
			return errUnchanged
		}
		if p.state.CurrentIndex < n-1 {
			p.state.CurrentIndex++
		} else {
			p.state.CurrentIndex = 0
			p.state.IsPlaying = false
		}
		p.state.Progress = 0
		p.loadCurrentLocked()
		return nil
	})
}

// Seek moves playback to percent of the current track. Progress is updated
// immediately, whether or not the transport follows.
func (p *Player) Seek(percent float64) error {
	return p.mutate(func() error {
		if !validPercent(percent) {
			return ErrPercentRange
		}
		if len(p.tracks) == 0 {
			return ErrNoTracks
		}
		p.state.Progress = percent
		if err := p.transport.Seek(percent / 100); err != nil {
			p.failLocked("seek", err)
		}
		return nil
	})
}

// SetVolume applies percent to the transport. It works on an empty playlist
// too; volume outlives track changes.
func (p *Player) SetVolume(percent float64) error {
	return p.mutate(func() error {
		if !validPercent(percent) {
			return ErrPercentRange
		}
		p.state.Volume = percent
		if err := p.transport.SetVolume(percent / 100); err != nil {
			p.failLocked("volume", err)
		}
		return nil
	})
}

// SetTracks replaces the playlist. The active track is followed to its new
// position when it is still present. When it is gone the index is clamped
// into range and playback stops; an empty list resets to NoTrack.
func (p *Player) SetTracks(tracks []Track) {
	_ = p.mutate(func() error {
		var activeID string
		if t := p.currentLocked(); t != nil {
			activeID = t.ID
		}
		p.tracks = cloneTracks(tracks)
		n := len(p.tracks)

		switch {
		case n == 0:
			wasLoaded := p.state.CurrentIndex != NoTrack
			p.state.CurrentIndex = NoTrack
			p.state.IsPlaying = false
			p.state.Progress = 0
			if wasLoaded {
				p.loadCurrentLocked()
			}
		case p.state.CurrentIndex == NoTrack:
			p.state.CurrentIndex = 0
			p.state.IsPlaying = false
			p.state.Progress = 0
			p.loadCurrentLocked()
		default:
			if i := indexOf(p.tracks, activeID); i >= 0 {
				p.state.CurrentIndex = i
				return nil
			}
			if p.state.CurrentIndex >= n {
				p.state.CurrentIndex = n - 1
			}
			p.state.IsPlaying = false
			p.state.Progress = 0
			p.loadCurrentLocked()
		}
		return nil
	})
}

// OnTransportError records that the transport could not load or play. The
// player stays where it is, paused.
func (p *Player) OnTransportError(err error) {
	_ = p.mutate(func() error {
		p.logger.Warn("transport", "err", err)
		if !p.state.IsPlaying {
			return errUnchanged
		}
		p.state.IsPlaying = false
		return nil
	})
}

func (p *Player) mutate(fn func() error) error {
	p.mu.Lock()
	if err := fn(); err != nil {
		p.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	snap := p.snapshotLocked()
	subs := make([]subscriber, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, s := range subs {
		s.fn(snap)
	}
	return nil
}

// loadCurrentLocked points the transport at the current track and starts it
// when the player is playing.
func (p *Player) loadCurrentLocked() {
	p.loadID++
	t := p.currentLocked()
	if t == nil {
		if err := p.transport.Load("", p.loadID); err != nil {
			p.failLocked("unload", err)
		}
		return
	}
	if err := p.transport.Load(t.AudioURL, p.loadID); err != nil {
		p.failLocked("load", err)
		return
	}
	if p.state.IsPlaying {
		if err := p.transport.Play(); err != nil {
			p.failLocked("play", err)
		}
	}
}

func (p *Player) staleLocked(id uint64) bool {
	return id != 0 && id != p.loadID
}

func (p *Player) failLocked(op string, err error) {
	p.logger.Warn("transport "+op, "err", err)
	p.state.IsPlaying = false
}

func (p *Player) currentLocked() *Track {
	i := p.state.CurrentIndex
	if i < 0 || i >= len(p.tracks) {
		return nil
	}
	return &p.tracks[i]
}

func (p *Player) snapshotLocked() Snapshot {
	snap := Snapshot{State: p.state, TrackCount: len(p.tracks)}
	if t := p.currentLocked(); t != nil {
		cp := *t
		snap.Track = &cp
	}
	return snap
}

func progressPercent(elapsed, duration float64) float64 {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	pct := 100 * elapsed / duration
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

func indexOf(tracks []Track, id string) int {
	if id == "" {
		return -1
	}
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func cloneTracks(tracks []Track) []Track {
	out := make([]Track, len(tracks))
	copy(out, tracks)
	return out
}
