package source

import (
	"io"
	"sync"
)

const readAheadChunk = 64 * 1024

// ReadAhead reads its source on a background goroutine, holding up to a
// fixed number of bytes that the consumer has not read yet.
type ReadAhead struct {
	src    io.ReadCloser
	chunks chan []byte
	cur    []byte
	err    error

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewReadAhead starts buffering src. bufferBytes is rounded up to whole
// 64 KiB chunks.
func NewReadAhead(src io.ReadCloser, bufferBytes int) *ReadAhead {
	slots := (bufferBytes + readAheadChunk - 1) / readAheadChunk
	if slots < 1 {
		slots = 1
	}
	r := &ReadAhead{
		src:    src,
		chunks: make(chan []byte, slots),
		done:   make(chan struct{}),
	}
	go r.fill()
	return r
}

func (r *ReadAhead) fill() {
	defer close(r.chunks)
	for {
		buf := make([]byte, readAheadChunk)
		n, err := r.src.Read(buf)
		if n > 0 {
			select {
			case r.chunks <- buf[:n]:
			case <-r.done:
				r.err = io.ErrClosedPipe
				return
			}
		}
		if err != nil {
			r.err = err
			return
		}
	}
}

func (r *ReadAhead) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.cur) == 0 {
		chunk, ok := <-r.chunks
		if !ok {
			return 0, r.err
		}
		r.cur = chunk
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// Close stops buffering and closes the source.
func (r *ReadAhead) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.closeErr = r.src.Close()
	})
	return r.closeErr
}
