package player

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	calls    []string
	failPlay error
	failLoad error
	loadID   uint64
}

func (r *recorder) record(c string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) Load(src string, id uint64) error {
	r.mu.Lock()
	r.loadID = id
	r.mu.Unlock()
	r.record("load:" + src)
	return r.failLoad
}

func (r *recorder) lastLoad() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadID
}

func (r *recorder) Play() error {
	r.record("play")
	return r.failPlay
}

func (r *recorder) Pause() error {
	r.record("pause")
	return nil
}

func (r *recorder) Seek(fraction float64) error {
	r.record(fmt.Sprintf("seek:%.2f", fraction))
	return nil
}

func (r *recorder) SetVolume(level float64) error {
	r.record(fmt.Sprintf("volume:%.2f", level))
	return nil
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

func threeTracks() []Track {
	return []Track{
		{ID: "a", Title: "Track A", AudioURL: "/media/music/a.mp3"},
		{ID: "b", Title: "Track B", AudioURL: "/media/music/b.mp3"},
		{ID: "c", Title: "Track C", AudioURL: "/media/music/c.mp3"},
	}
}

func TestNew_InitialState(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)

	assert.Equal(t, State{CurrentIndex: 0, IsPlaying: false, Progress: 0, Volume: 70}, p.State())
	assert.Equal(t, []string{"volume:0.70", "load:/media/music/a.mp3"}, rec.take())

	empty := New(nil, rec)
	assert.Equal(t, NoTrack, empty.State().CurrentIndex)
	assert.False(t, empty.State().IsPlaying)
	assert.Nil(t, empty.Snapshot().Track)
}

func TestNew_CopiesTrackList(t *testing.T) {
	tracks := threeTracks()
	p := New(tracks, nil)
	tracks[0].AudioURL = "mutated"

	assert.Equal(t, "/media/music/a.mp3", p.Snapshot().Track.AudioURL)
}

func TestNext_CyclesBackToStart(t *testing.T) {
	for n := 1; n <= 5; n++ {
		tracks := make([]Track, n)
		for i := range tracks {
			tracks[i] = Track{ID: fmt.Sprint(i), AudioURL: fmt.Sprintf("/t/%d", i)}
		}
		for start := 0; start < n; start++ {
			p := New(tracks, nil)
			require.NoError(t, p.SelectTrack(start))
			for i := 0; i < n; i++ {
				require.NoError(t, p.Next())
			}
			assert.Equal(t, start, p.State().CurrentIndex, "n=%d start=%d", n, start)
		}
	}
}

func TestNextPrevious_Wrap(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)
	rec.take()

	require.NoError(t, p.Previous())
	assert.Equal(t, 2, p.State().CurrentIndex)
	assert.False(t, p.State().IsPlaying)
	assert.Equal(t, []string{"load:/media/music/c.mp3"}, rec.take())

	require.NoError(t, p.Next())
	assert.Equal(t, 0, p.State().CurrentIndex)

	require.NoError(t, p.Next())
	assert.Equal(t, 1, p.State().CurrentIndex)
}

func TestNext_KeepsPlayingAndResetsProgress(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)
	require.NoError(t, p.TogglePlayPause())
	p.OnTimeUpdate(30, 60)
	rec.take()

	require.NoError(t, p.Next())
	st := p.State()
	assert.Equal(t, 1, st.CurrentIndex)
	assert.True(t, st.IsPlaying)
	assert.Zero(t, st.Progress)
	assert.Equal(t, []string{"load:/media/music/b.mp3", "play"}, rec.take())
}

func TestSelectTrack_StartsPlayback(t *testing.T) {
	for i := range threeTracks() {
		p := New(threeTracks(), nil)
		p.OnTimeUpdate(10, 100)

		require.NoError(t, p.SelectTrack(i))
		st := p.State()
		assert.Equal(t, i, st.CurrentIndex)
		assert.True(t, st.IsPlaying)
		assert.Zero(t, st.Progress)
	}
}

func TestSelectTrack_Invalid(t *testing.T) {
	p := New(threeTracks(), nil)
	assert.ErrorIs(t, p.SelectTrack(3), ErrTrackIndex)
	assert.ErrorIs(t, p.SelectTrack(-1), ErrTrackIndex)
	assert.Equal(t, 0, p.State().CurrentIndex)

	empty := New(nil, nil)
	assert.ErrorIs(t, empty.SelectTrack(0), ErrNoTracks)
}

func TestOnTrackEnded(t *testing.T) {
	t.Run("advances and keeps playing", func(t *testing.T) {
		rec := &recorder{}
		p := New(threeTracks(), rec)
		require.NoError(t, p.SelectTrack(0))
		rec.take()

		p.OnTrackEnded()
		st := p.State()
		assert.Equal(t, 1, st.CurrentIndex)
		assert.True(t, st.IsPlaying)
		assert.Zero(t, st.Progress)
		assert.Equal(t, []string{"load:/media/music/b.mp3", "play"}, rec.take())
	})

	t.Run("stops after last track", func(t *testing.T) {
		rec := &recorder{}
		p := New(threeTracks(), rec)
		require.NoError(t, p.SelectTrack(2))
		assert.Equal(t, State{CurrentIndex: 2, IsPlaying: true, Progress: 0, Volume: 70}, p.State())
		rec.take()

		p.OnTrackEnded()
		st := p.State()
		assert.Equal(t, 0, st.CurrentIndex)
		assert.False(t, st.IsPlaying)
		assert.Zero(t, st.Progress)
		assert.Equal(t, []string{"load:/media/music/a.mp3"}, rec.take())
	})

	t.Run("single track stops", func(t *testing.T) {
		p := New(threeTracks()[:1], nil)
		require.NoError(t, p.SelectTrack(0))
		p.OnTrackEnded()
		assert.Equal(t, 0, p.State().CurrentIndex)
		assert.False(t, p.State().IsPlaying)
	})

	t.Run("empty list ignores stale event", func(t *testing.T) {
		p := New(nil, nil)
		p.OnTrackEnded()
		assert.Equal(t, NoTrack, p.State().CurrentIndex)
	})
}

func TestOnTimeUpdate(t *testing.T) {
	p := New(threeTracks(), nil)

	p.OnTimeUpdate(15, 60)
	assert.InDelta(t, 25, p.State().Progress, 1e-9)

	for _, elapsed := range []float64{0, 1, 42.5, 1e9, -3} {
		p.OnTimeUpdate(elapsed, 0)
		assert.Zero(t, p.State().Progress, "elapsed=%v", elapsed)
	}

	p.OnTimeUpdate(10, math.NaN())
	assert.Zero(t, p.State().Progress)
	p.OnTimeUpdate(10, math.Inf(1))
	assert.Zero(t, p.State().Progress)
	p.OnTimeUpdate(math.NaN(), 60)
	assert.Zero(t, p.State().Progress)

	p.OnTimeUpdate(90, 60)
	assert.Equal(t, 100.0, p.State().Progress)
	p.OnTimeUpdate(-5, 60)
	assert.Zero(t, p.State().Progress)
}

func TestTogglePlayPause(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)
	rec.take()

	require.NoError(t, p.TogglePlayPause())
	assert.True(t, p.State().IsPlaying)
	require.NoError(t, p.TogglePlayPause())
	assert.False(t, p.State().IsPlaying)
	assert.Equal(t, []string{"play", "pause"}, rec.take())
}

func TestTogglePlayPause_EmptyIsNoop(t *testing.T) {
	rec := &recorder{}
	p := New(nil, rec)
	rec.take()

	err := p.TogglePlayPause()
	assert.ErrorIs(t, err, ErrNoTracks)
	assert.Equal(t, NoTrack, p.State().CurrentIndex)
	assert.False(t, p.State().IsPlaying)
	assert.Empty(t, rec.take())
}

func TestSeek(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)
	rec.take()

	require.NoError(t, p.Seek(40))
	assert.Equal(t, 40.0, p.State().Progress)
	assert.Equal(t, []string{"seek:0.40"}, rec.take())

	assert.ErrorIs(t, p.Seek(101), ErrPercentRange)
	assert.ErrorIs(t, p.Seek(-1), ErrPercentRange)
	assert.ErrorIs(t, p.Seek(math.NaN()), ErrPercentRange)
	assert.Equal(t, 40.0, p.State().Progress)

	assert.ErrorIs(t, New(nil, nil).Seek(10), ErrNoTracks)
}

func TestSetVolume(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)
	require.NoError(t, p.SelectTrack(1))
	rec.take()

	require.NoError(t, p.SetVolume(25))
	st := p.State()
	assert.Equal(t, 25.0, st.Volume)
	assert.True(t, st.IsPlaying)
	assert.Equal(t, []string{"volume:0.25"}, rec.take())

	require.NoError(t, p.Next())
	assert.Equal(t, 25.0, p.State().Volume)

	assert.ErrorIs(t, p.SetVolume(100.5), ErrPercentRange)
	assert.Equal(t, 25.0, p.State().Volume)

	empty := New(nil, nil)
	require.NoError(t, empty.SetVolume(10))
	assert.Equal(t, 10.0, empty.State().Volume)
}

func TestSetTracks(t *testing.T) {
	t.Run("list becomes empty", func(t *testing.T) {
		rec := &recorder{}
		p := New(threeTracks(), rec)
		require.NoError(t, p.SelectTrack(1))
		require.NoError(t, p.SetVolume(30))
		rec.take()

		p.SetTracks(nil)
		assert.Equal(t, State{CurrentIndex: NoTrack, Volume: 30}, p.State())
		assert.Equal(t, []string{"load:"}, rec.take())
	})

	t.Run("active track survives reorder", func(t *testing.T) {
		p := New(threeTracks(), nil)
		require.NoError(t, p.SelectTrack(1))
		p.OnTimeUpdate(5, 10)

		tracks := threeTracks()
		reordered := []Track{tracks[1], tracks[2], tracks[0], {ID: "d", AudioURL: "/d"}}
		p.SetTracks(reordered)

		st := p.State()
		assert.Equal(t, 0, st.CurrentIndex)
		assert.True(t, st.IsPlaying)
		assert.Equal(t, 50.0, st.Progress)
		assert.Equal(t, 4, p.Snapshot().TrackCount)
	})

	t.Run("active track removed clamps and stops", func(t *testing.T) {
		rec := &recorder{}
		p := New(threeTracks(), rec)
		require.NoError(t, p.SelectTrack(2))
		rec.take()

		p.SetTracks(threeTracks()[:2])
		st := p.State()
		assert.Equal(t, 1, st.CurrentIndex)
		assert.False(t, st.IsPlaying)
		assert.Zero(t, st.Progress)
		assert.Equal(t, []string{"load:/media/music/b.mp3"}, rec.take())
	})

	t.Run("active track removed in the middle", func(t *testing.T) {
		p := New(threeTracks(), nil)
		require.NoError(t, p.SelectTrack(1))
		tracks := threeTracks()

		p.SetTracks([]Track{tracks[0], tracks[2]})
		assert.Equal(t, 1, p.State().CurrentIndex)
		assert.Equal(t, "c", p.Snapshot().Track.ID)
		assert.False(t, p.State().IsPlaying)
	})

	t.Run("empty to non-empty", func(t *testing.T) {
		rec := &recorder{}
		p := New(nil, rec)
		rec.take()

		p.SetTracks(threeTracks())
		assert.Equal(t, State{CurrentIndex: 0, Volume: 70}, p.State())
		assert.Equal(t, []string{"load:/media/music/a.mp3"}, rec.take())
	})
}

func TestTransportFailureLeavesPlayerPaused(t *testing.T) {
	rec := &recorder{failPlay: errors.New("NotAllowedError")}
	p := New(threeTracks(), rec)

	require.NoError(t, p.TogglePlayPause())
	assert.False(t, p.State().IsPlaying)

	require.NoError(t, p.SelectTrack(2))
	st := p.State()
	assert.Equal(t, 2, st.CurrentIndex)
	assert.False(t, st.IsPlaying)

	rec.failPlay = nil
	require.NoError(t, p.TogglePlayPause())
	assert.True(t, p.State().IsPlaying)

	p.OnTransportError(errors.New("decode failed"))
	assert.False(t, p.State().IsPlaying)
	assert.Equal(t, 2, p.State().CurrentIndex)
}

func TestSelectTrackID(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)
	rec.take()

	require.NoError(t, p.SelectTrackID("c"))
	assert.Equal(t, State{CurrentIndex: 2, IsPlaying: true, Volume: 70}, p.State())
	assert.Equal(t, []string{"load:/media/music/c.mp3", "play"}, rec.take())

	assert.ErrorIs(t, p.SelectTrackID("zz"), ErrUnknownTrack)
	assert.Equal(t, 2, p.State().CurrentIndex)

	// the id keeps pointing at the same track after the list shifts
	tracks := threeTracks()
	p.SetTracks(append([]Track{{ID: "n", AudioURL: "/media/music/n.mp3"}}, tracks...))
	require.NoError(t, p.SelectTrackID("a"))
	assert.Equal(t, 1, p.State().CurrentIndex)

	assert.ErrorIs(t, New(nil, nil).SelectTrackID("a"), ErrNoTracks)
}

func TestReportsForEarlierLoadAreIgnored(t *testing.T) {
	rec := &recorder{}
	p := New(threeTracks(), rec)
	require.NoError(t, p.TogglePlayPause())

	first := rec.lastLoad()
	p.OnTimeUpdateFor(first, 30, 60)
	assert.Equal(t, 50.0, p.State().Progress)

	require.NoError(t, p.Next())
	second := rec.lastLoad()
	assert.Greater(t, second, first)

	p.OnTimeUpdateFor(first, 40, 60)
	assert.Zero(t, p.State().Progress)
	p.OnTrackEndedFor(first)
	assert.Equal(t, 1, p.State().CurrentIndex)

	p.OnTimeUpdateFor(second, 6, 60)
	assert.Equal(t, 10.0, p.State().Progress)

	// untagged reports always apply
	p.OnTimeUpdate(12, 60)
	assert.Equal(t, 20.0, p.State().Progress)

	p.OnTrackEndedFor(second)
	assert.Equal(t, 2, p.State().CurrentIndex)
	assert.True(t, p.State().IsPlaying)
}

func TestTransportLoadFailure(t *testing.T) {
	rec := &recorder{failLoad: errors.New("404")}
	p := New(threeTracks(), rec)

	require.NoError(t, p.SelectTrack(1))
	assert.Equal(t, 1, p.State().CurrentIndex)
	assert.False(t, p.State().IsPlaying)
}

func TestSubscribe(t *testing.T) {
	p := New(threeTracks(), nil)

	var got []Snapshot
	cancel := p.Subscribe(func(s Snapshot) { got = append(got, s) })

	require.NoError(t, p.SelectTrack(1))
	p.OnTimeUpdate(1, 4)
	p.OnTimeUpdate(1, 4)
	_ = p.SelectTrack(9)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Track.ID)
	assert.Equal(t, 3, got[0].TrackCount)
	assert.Equal(t, 25.0, got[1].State.Progress)

	cancel()
	require.NoError(t, p.Next())
	assert.Len(t, got, 2)
}

func TestSubscriberMayReadPlayer(t *testing.T) {
	p := New(threeTracks(), nil)
	var seen State
	p.Subscribe(func(Snapshot) { seen = p.State() })

	require.NoError(t, p.SelectTrack(2))
	assert.Equal(t, 2, seen.CurrentIndex)
}

func TestConcurrentUse(t *testing.T) {
	p := New(threeTracks(), &recorder{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				switch (i + j) % 5 {
				case 0:
					_ = p.Next()
				case 1:
					p.OnTimeUpdate(float64(j), 200)
				case 2:
					p.SetTracks(threeTracks()[:1+j%3])
				case 3:
					p.OnTrackEnded()
				default:
					_ = p.TogglePlayPause()
				}
			}
		}(i)
	}
	wg.Wait()

	st := p.State()
	n := p.Snapshot().TrackCount
	assert.True(t, st.CurrentIndex >= 0 && st.CurrentIndex < n)
}
