package content

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrAudioReleased = errors.New("audio asset has been released")
	ErrNotAudio      = errors.New("decoded data is not audio")
	ErrEmptyAudio    = errors.New("audio payload is empty")
	ErrInvalidAudio  = errors.New("audio payload is not valid base64")
)

// IsInvalidAudio reports whether err comes from an unusable audio payload.
func IsInvalidAudio(err error) bool {
	return errors.Is(err, ErrInvalidAudio) || errors.Is(err, ErrNotAudio) || errors.Is(err, ErrEmptyAudio)
}

// AudioAsset is a decoded listening clip. Release drops the buffer once the
// clip is no longer needed.
type AudioAsset struct {
	mu       sync.RWMutex
	data     []byte
	mime     string
	released bool
}

// DecodeAudio decodes a base64 clip, with or without a data-URL prefix, and
// sniffs its media type.
func DecodeAudio(encoded string) (*AudioAsset, error) {
	encoded = strings.TrimSpace(encoded)
	if i := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+1:]
	}
	if encoded == "" {
		return nil, ErrEmptyAudio
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	mt := mimetype.Detect(data)
	if !isAudio(mt) {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAudio, mt.String())
	}

	return &AudioAsset{data: data, mime: mt.String()}, nil
}

func isAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || m.Is("application/ogg") {
			return true
		}
	}
	return false
}

func (a *AudioAsset) MIME() string {
	return a.mime
}

// Bytes returns the decoded clip. It fails after Release.
func (a *AudioAsset) Bytes() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.released {
		return nil, ErrAudioReleased
	}
	return a.data, nil
}

func (a *AudioAsset) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = nil
	a.released = true
}
