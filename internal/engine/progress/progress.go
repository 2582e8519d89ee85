// Package progress carries human readable run notifications from the engine
// to whoever displays them.
package progress

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Sink receives progress messages. Implementations must not block for long;
// the engine calls Notify from its run goroutine.
type Sink interface {
	Notify(message string)
}

// Func adapts a plain function to a Sink. Panics in the function are
// recovered and logged.
type Func func(message string)

// Notify calls f.
func (f Func) Notify(message string) {
	if f == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("progress handler panicked", "message", message, "panic", r)
		}
	}()
	f(message)
}

// Discard drops every message.
var Discard Sink = Func(func(string) {})

// Dispatcher decouples the engine from a slow sink: Notify only enqueues, and
// a single goroutine delivers messages in order. When the buffer is full the
// message is dropped.
type Dispatcher struct {
	target  Sink
	ch      chan string
	mu      sync.RWMutex // guards ch against send after close
	closed  atomic.Bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewDispatcher starts delivering to target. bufferSize <= 0 uses 64.
func NewDispatcher(target Sink, bufferSize int, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		target: target,
		ch:     make(chan string, bufferSize),
		logger: logger,
	}
	d.wg.Add(1)
	go d.dispatch()
	return d
}

// Notify enqueues message without blocking.
func (d *Dispatcher) Notify(message string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed.Load() {
		return
	}
	select {
	case d.ch <- message:
	default:
		d.dropped.Add(1)
		d.logger.Warn("progress buffer full, message dropped", "message", message)
	}
}

// Dropped returns how many messages were discarded on a full buffer.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Close stops accepting messages and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed.Swap(true) {
		d.mu.Unlock()
		return
	}
	close(d.ch)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()
	for msg := range d.ch {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("progress sink panicked", "message", msg, "panic", r)
		}
	}()
	d.target.Notify(msg)
}
