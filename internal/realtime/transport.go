package realtime

import "errors"

var errSendBufferFull = errors.New("send buffer full")

type transportMessage struct {
	Type     string   `json:"type"`
	Command  string   `json:"command"`
	Src      *string  `json:"src,omitempty"`
	Load     uint64   `json:"load,omitempty"`
	Fraction *float64 `json:"fraction,omitempty"`
	Level    *float64 `json:"level,omitempty"`
}

// wsTransport drives the browser's <audio> element by queuing commands on
// the session's connection. It never blocks.
type wsTransport struct {
	c *Client
}

func (t wsTransport) push(m transportMessage) error {
	m.Type = "transport"
	if !t.c.enqueueJSON(m) {
		return errSendBufferFull
	}
	return nil
}

func (t wsTransport) Load(src string, id uint64) error {
	return t.push(transportMessage{Command: "load", Src: &src, Load: id})
}

func (t wsTransport) Play() error {
	return t.push(transportMessage{Command: "play"})
}

func (t wsTransport) Pause() error {
	return t.push(transportMessage{Command: "pause"})
}

func (t wsTransport) Seek(fraction float64) error {
	return t.push(transportMessage{Command: "seek", Fraction: &fraction})
}

func (t wsTransport) SetVolume(level float64) error {
	return t.push(transportMessage{Command: "volume", Level: &level})
}
