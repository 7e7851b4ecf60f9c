package player

// Transport is the audio output a Player drives. In the service it is the
// browser's <audio> element reached over a WebSocket; tests use a recorder.
//
// Implementations must not call back into the Player synchronously: the
// Player holds its lock while issuing commands.
type Transport interface {
	// Load replaces the current source. An empty src unloads it. id grows
	// with every load; transports echo it back with time and end reports.
	Load(src string, id uint64) error
	Play() error
	Pause() error
	// Seek moves playback to fraction (0..1) of the current source's duration.
	Seek(fraction float64) error
	// SetVolume sets the output level in [0,1].
	SetVolume(level float64) error
}

type nopTransport struct{}

func (nopTransport) Load(string, uint64) error { return nil }
func (nopTransport) Play() error               { return nil }
func (nopTransport) Pause() error              { return nil }
func (nopTransport) Seek(float64) error        { return nil }
func (nopTransport) SetVolume(float64) error   { return nil }
