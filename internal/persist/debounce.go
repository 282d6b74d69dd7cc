package persist

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period before a scheduled save runs.
const DefaultDebounce = 2 * time.Second

// Debouncer coalesces save requests. Each Schedule restarts the quiet period; the
// save function runs once the period elapses without further requests.
type Debouncer struct {
	save   func() error
	delay  time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	timer   *timerHandle
	pending bool
	closed  bool

	// serializes save invocations
	saveMu sync.Mutex
}

type timerHandle struct {
	t *time.Timer
}

// NewDebouncer creates a Debouncer that calls save after delay of inactivity.
// A non-positive delay uses DefaultDebounce.
func NewDebouncer(delay time.Duration, save func() error, logger *zap.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		save:   save,
		delay:  delay,
		logger: logger,
	}
}

// Schedule requests a save after the quiet period. Calls after Close are ignored.
func (d *Debouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.pending = true
	if d.timer != nil {
		d.timer.t.Stop()
	}
	h := &timerHandle{}
	h.t = time.AfterFunc(d.delay, func() { d.fire(h) })
	d.timer = h
}

func (d *Debouncer) fire(h *timerHandle) {
	d.mu.Lock()
	if d.timer != h || !d.pending {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.pending = false
	d.mu.Unlock()

	if err := d.run(); err != nil {
		d.logger.Warn("debounced save failed", zap.Error(err))
	}
}

// Pending reports whether a save is scheduled but has not run.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush cancels any scheduled save and saves synchronously.
func (d *Debouncer) Flush() error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.t.Stop()
		d.timer = nil
	}
	d.pending = false
	d.mu.Unlock()

	return d.run()
}

// Close flushes a pending save and stops accepting new requests.
func (d *Debouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	pending := d.pending
	if d.timer != nil {
		d.timer.t.Stop()
		d.timer = nil
	}
	d.pending = false
	d.mu.Unlock()

	if !pending {
		return nil
	}
	return d.run()
}

func (d *Debouncer) run() error {
	d.saveMu.Lock()
	defer d.saveMu.Unlock()
	return d.save()
}
