// Package debounce buffers rapidly changing free text and commits it only
// after the input has been quiet for a while, so a search box produces one
// remote query per pause instead of one per keystroke.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet interval used when none is configured.
const DefaultDelay = 500 * time.Millisecond

// Timer is the part of *time.Timer the buffer needs.
type Timer interface {
	Stop() bool
}

// Clock schedules commits. The real clock wraps time.AfterFunc; tests use a
// manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Buffer holds the raw text echoed to the UI and the committed text that feeds
// the search.
type Buffer struct {
	mu        sync.Mutex
	clock     Clock
	delay     time.Duration
	onCommit  func(string)
	raw       string
	committed string
	timer     Timer
	gen       uint64
	stopped   bool
}

type Option func(*Buffer)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(b *Buffer) { b.clock = c }
}

// New creates a buffer committing after delay of silence. onCommit runs on the
// timer goroutine and receives the final raw value; it may be nil.
func New(delay time.Duration, onCommit func(string), opts ...Option) *Buffer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	b := &Buffer{
		clock:    realClock{},
		delay:    delay,
		onCommit: onCommit,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Type records a keystroke. Raw updates immediately and the quiet interval
// restarts; any pending commit is cancelled.
func (b *Buffer) Type(raw string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}

	b.raw = raw
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
	}
	gen := b.gen
	b.timer = b.clock.AfterFunc(b.delay, func() { b.fire(gen) })
}

// Reset sets raw and committed text at once without scheduling a commit. It
// is used when the text changes from outside, e.g. back/forward navigation.
func (b *Buffer) Reset(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.raw = text
	b.committed = text
}

func (b *Buffer) fire(gen uint64) {
	b.mu.Lock()
	// A timer that lost the race against Stop, Reset or a newer keystroke
	// must not commit.
	if b.stopped || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	changed := b.committed != b.raw
	b.committed = b.raw
	value := b.committed
	cb := b.onCommit
	b.mu.Unlock()

	if changed && cb != nil {
		cb(value)
	}
}

func (b *Buffer) Raw() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.raw
}

func (b *Buffer) Committed() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// Pending reports whether a commit is scheduled.
func (b *Buffer) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil
}

// Stop cancels any pending commit. The buffer ignores input afterwards.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
