package editor

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Debouncer applies only the most recently scheduled text, once no new text
// has been scheduled for the configured delay
type Debouncer struct {
	delay  time.Duration
	apply  func(text string) error
	logger *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending *string
	gen     uint64
	stopped bool
}

// NewDebouncer creates a debouncer calling apply after delay
func NewDebouncer(delay time.Duration, apply func(text string) error, logger *zap.Logger) *Debouncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{delay: delay, apply: apply, logger: logger}
}

// Schedule replaces the pending text and restarts the quiet period
func (d *Debouncer) Schedule(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = &text
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush applies the pending text immediately, if any
func (d *Debouncer) Flush() error {
	text, ok := d.take(0)
	if !ok {
		return nil
	}
	return d.apply(text)
}

// Stop cancels the pending text. Later calls to Schedule are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
}

// take removes the pending text. Timer callbacks pass the generation they
// were scheduled for and get nothing once a later Schedule superseded them.
func (d *Debouncer) take(gen uint64) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != 0 && gen != d.gen {
		return "", false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.pending == nil {
		return "", false
	}
	text := *d.pending
	d.pending = nil
	return text, true
}

// fire runs on the timer goroutine; failures are only logged
func (d *Debouncer) fire(gen uint64) {
	text, ok := d.take(gen)
	if !ok {
		return
	}
	if err := d.apply(text); err != nil {
		if errors.Is(err, ErrNoTables) {
			d.logger.Debug("debounced apply skipped", zap.Error(err))
			return
		}
		d.logger.Warn("debounced apply failed", zap.Error(err))
	}
}
