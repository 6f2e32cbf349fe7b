// Package dispatcher buffers TimedMessages emitted by the scheduler and
// releases each at its deadline to the device it targets (§4.F). It owns a
// deadline-ordered min-heap and a single worker goroutine that sleeps until
// the next deadline, pops everything that has come due, and hands each
// message to its device handle's non-blocking Send.
package dispatcher

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrTooFarInFuture is returned by Enqueue when a message's deadline is more
// than maxLookahead beyond now, to avoid unbounded queuing.
var ErrTooFarInFuture = errors.New("dispatcher: deadline too far in the future")

const maxLookahead = 5 * time.Second

// DeviceHandle is the minimal surface a device exposes to the dispatcher.
// Send must not block; device-specific translation already happened in the
// Device Registry, so Payload is whatever that device's Send expects.
type DeviceHandle interface {
	Send(payload any) error
}

// TimedMessage is one device-bound delivery with an absolute deadline.
type TimedMessage struct {
	DeadlineMicros int64
	Device         DeviceHandle
	DeviceName     string // for logging when Send fails
	Payload        any
}

// messageQueue is a container/heap.Interface over pending TimedMessages,
// ordered by DeadlineMicros.
type messageQueue struct {
	items []TimedMessage
}

func (q *messageQueue) Len() int { return len(q.items) }

func (q *messageQueue) Less(i, j int) bool {
	if i >= len(q.items) || j >= len(q.items) {
		return false
	}
	return q.items[i].DeadlineMicros < q.items[j].DeadlineMicros
}

func (q *messageQueue) Swap(i, j int) {
	if i >= len(q.items) || j >= len(q.items) {
		return
	}
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *messageQueue) Push(x any) {
	q.items = append(q.items, x.(TimedMessage))
}

func (q *messageQueue) Pop() any {
	n := len(q.items)
	if n == 0 {
		return TimedMessage{}
	}
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

func (q *messageQueue) Peek() (TimedMessage, bool) {
	if len(q.items) == 0 {
		return TimedMessage{}, false
	}
	return q.items[0], true
}

// nowMicros is overridable in tests so deadline arithmetic is deterministic.
var nowMicros = func() int64 { return time.Now().UnixMicro() }

// Dispatcher owns the pending-message heap and the worker loop.
type Dispatcher struct {
	mu      sync.Mutex
	queue   *messageQueue
	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
	log     *slog.Logger
}

// New creates a Dispatcher. Call Run in its own goroutine to start the
// worker loop.
func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	q := &messageQueue{}
	heap.Init(q)
	return &Dispatcher{
		queue:   q,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		log:     logger,
	}
}

// Enqueue adds msg to the pending heap. A deadline already in the past is
// dispatched on the worker's next wake; a deadline more than 5s in the
// future is rejected.
func (d *Dispatcher) Enqueue(msg TimedMessage) error {
	if msg.DeadlineMicros > nowMicros()+maxLookahead.Microseconds() {
		return fmt.Errorf("%w: deadline %d", ErrTooFarInFuture, msg.DeadlineMicros)
	}
	d.mu.Lock()
	heap.Push(d.queue, msg)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drives the worker loop until Stop is called. It should run in its own
// goroutine.
func (d *Dispatcher) Run() {
	defer close(d.stopped)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		d.mu.Lock()
		next, ok := d.queue.Peek()
		d.mu.Unlock()

		var wait time.Duration
		if ok {
			wait = time.Duration(next.DeadlineMicros-nowMicros()) * time.Microsecond
			if wait < 0 {
				wait = 0
			}
		} else {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-d.stop:
			return
		case <-d.wake:
			continue
		case <-timer.C:
			d.deliverDue()
		}
	}
}

// Stop ends the worker loop and waits for it to exit.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.stopped
}

func (d *Dispatcher) deliverDue() {
	now := nowMicros()
	for {
		d.mu.Lock()
		next, ok := d.queue.Peek()
		if !ok || next.DeadlineMicros > now {
			d.mu.Unlock()
			return
		}
		msg := heap.Pop(d.queue).(TimedMessage)
		d.mu.Unlock()

		if err := msg.Device.Send(msg.Payload); err != nil {
			d.log.Warn("device send failed", "device", msg.DeviceName, "err", err)
		}
	}
}

// Pending returns the number of messages currently buffered, for tests and
// diagnostics.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}
