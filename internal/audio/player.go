package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ErrNoSink is reported when a resource is played before a sink is attached.
var ErrNoSink = errors.New("audio: no sink attached")

// Sink receives Opus frames, usually a voice connection.
type Sink interface {
	SendFrame(frame []byte) error
	Speaking(speaking bool) error
}

// Subscriber is anything a voice connection can route its audio from.
type Subscriber interface {
	Attach(sink Sink)
}

type track struct {
	res  *Resource
	stop chan struct{}
	once sync.Once
}

// halt signals the streaming goroutine and closes the resource so that a
// read blocked on the network returns.
func (t *track) halt() {
	t.once.Do(func() {
		close(t.stop)
		_ = t.res.Close()
	})
}

func (t *track) halted() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

type Player struct {
	mu      sync.Mutex
	sink    Sink
	current *track
	paused  bool
	wake    chan struct{}
	closed  bool

	events chan Event
	done   chan struct{}
}

func NewPlayer() *Player {
	return &Player{
		wake:   make(chan struct{}, 1),
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}
}

var _ Subscriber = (*Player)(nil)

// Attach routes future frames to sink.
func (p *Player) Attach(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// Events delivers one terminal event per played resource.
func (p *Player) Events() <-chan Event {
	return p.events
}

// Play starts res, replacing whatever is playing. Pause is cleared.
func (p *Player) Play(res *Resource) {
	p.play(res, false)
}

// PlayPaused loads res like Play but holds it until Unpause.
func (p *Player) PlayPaused(res *Resource) {
	p.play(res, true)
}

func (p *Player) play(res *Resource, paused bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = res.Close()
		return
	}
	if p.current != nil {
		// The replaced track ends without a terminal event.
		p.current.halt()
	}
	t := &track{res: res, stop: make(chan struct{})}
	p.current = t
	p.paused = paused
	sink := p.sink
	p.mu.Unlock()

	go p.run(t, sink)
}

// Stop ends the current resource. Its terminal event is EventIdle.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.halt()
	}
}

// Pause holds the current resource. It reports false if nothing is
// playing or the player is already paused.
func (p *Player) Pause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.paused {
		return false
	}
	p.paused = true
	return true
}

// Unpause continues a paused resource. It reports false if the player
// was not paused.
func (p *Player) Unpause() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return false
	}
	p.paused = false
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops the player for good. The current resource ends without a
// terminal event and later calls to Play are discarded.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.current != nil {
		p.current.halt()
	}
	close(p.done)
}

func (p *Player) isPaused(t *track) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current == t && p.paused
}

func (p *Player) run(t *track, sink Sink) {
	err := p.stream(t, sink)
	if cerr := t.res.Close(); cerr != nil {
		slog.Debug("failed to close resource", "title", t.res.Title, "error", cerr)
	}

	p.mu.Lock()
	if p.current != t || p.closed {
		// Replaced or closed: no terminal event.
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.paused = false
	p.mu.Unlock()

	ev := Event{Kind: EventIdle, Resource: t.res}
	if err != nil {
		ev = Event{Kind: EventError, Resource: t.res, Err: err}
	}

	select {
	case p.events <- ev:
	case <-p.done:
	}
}

func (p *Player) stream(t *track, sink Sink) error {
	if sink == nil {
		return ErrNoSink
	}

	if err := sink.Speaking(true); err != nil {
		return fmt.Errorf("error setting speaking state to 'true': %w", err)
	}
	defer func() {
		if err := sink.Speaking(false); err != nil {
			slog.Debug("failed to stop speaking", "error", err)
		}
	}()

	for {
		if t.halted() {
			return nil
		}

		if p.isPaused(t) {
			select {
			case <-t.stop:
				return nil
			case <-p.wake:
			}
			continue
		}

		frame, err := t.res.frames.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || t.halted() {
				return nil
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		if err := sink.SendFrame(frame); err != nil {
			if t.halted() {
				return nil
			}
			return fmt.Errorf("failed to send frame: %w", err)
		}
	}
}
