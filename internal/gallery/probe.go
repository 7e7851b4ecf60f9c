package gallery

import (
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }

// probeDuration decodes the header of an mp3 or wav upload and returns its
// playing time. Anything it cannot decode reports 0. The reader is left at
// an arbitrary offset.
func probeDuration(r io.ReadSeeker, filename, contentType string) (d time.Duration) {
	defer func() {
		if recover() != nil {
			d = 0
		}
	}()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch audioKind(filename, contentType) {
	case "mp3":
		streamer, format, err = mp3.Decode(nopSeekCloser{r})
	case "wav":
		streamer, format, err = wav.Decode(r)
	default:
		return 0
	}
	if err != nil {
		return 0
	}
	defer streamer.Close()

	n := streamer.Len()
	if n <= 0 || format.SampleRate <= 0 {
		return 0
	}
	return format.SampleRate.D(n)
}

func audioKind(filename, contentType string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "mp3"
	case ".wav", ".wave":
		return "wav"
	}
	switch strings.ToLower(contentType) {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	}
	return ""
}
