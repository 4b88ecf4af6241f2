package audio

import (
	"io"
	"sync"

	"github.com/glizzus/jukebox/internal/opus"
)

// Resource is a playable stream of Opus frames.
type Resource struct {
	Title string

	frames    *opus.FrameReader
	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

// NewResource wraps a length-prefixed Opus frame stream.
// The player closes rc once the resource ends.
func NewResource(title string, rc io.ReadCloser) *Resource {
	return &Resource{
		Title:  title,
		frames: opus.NewFrameReader(rc),
		closer: rc,
	}
}

// Close releases the underlying stream. It is safe to call more than once.
func (r *Resource) Close() error {
	r.closeOnce.Do(func() {
		if r.closer != nil {
			r.closeErr = r.closer.Close()
		}
	})
	return r.closeErr
}
