// Package looper provides a single goroutine mailbox that delivers messages
// in time order, one at a time.
package looper

import (
	"bytes"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/domain"
)

// Option configures a Looper.
type Option func(*Looper)

// WithDefaultHandler sets the handler for messages without their own OnHandle.
func WithDefaultHandler(f Func) Option {
	return func(l *Looper) {
		l.handle = f
	}
}

// WithDefaultFree sets the free callback for messages without their own OnFree.
func WithDefaultFree(f Func) Option {
	return func(l *Looper) {
		l.free = f
	}
}

// Looper owns a time-ordered message list and the goroutine that drains it.
//
// Messages with equal delivery times keep their insertion order. Timeouts are
// checked when a message is dequeued, so a message blocked behind a slow
// handler can time out even though it was due in time.
type Looper struct {
	name   string
	handle Func
	free   Func

	mu      sync.Mutex
	queue   []*Message
	running bool
	exit    bool
	wake    chan struct{}
	done    chan struct{}

	// gid is the worker goroutine id, zero while stopped.
	gid atomic.Uint64
}

// New creates a stopped looper. Messages may be posted before Start.
func New(name string, opts ...Option) *Looper {
	l := &Looper{
		name: name,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the looper name.
func (l *Looper) Name() string {
	return l.name
}

// Start launches the worker goroutine. Starting a running looper is a no-op.
func (l *Looper) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	l.running = true
	l.exit = false
	l.done = make(chan struct{})

	ready := make(chan struct{})
	go l.loop(ready, l.done)
	<-ready

	slog.Debug("looper: started", "name", l.name)
	return nil
}

// Stop signals the worker to exit and waits for it. Messages still queued are
// discarded. Called from the looper's own goroutine, Stop only signals and
// returns without waiting.
func (l *Looper) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		l.Clear()
		return
	}
	l.exit = true
	done := l.done
	self := l.gid.Load() == goroutineID()
	l.mu.Unlock()

	l.signal()

	if self {
		slog.Warn("looper: stop called from its own goroutine, not waiting", "name", l.name)
		return
	}
	<-done
	slog.Debug("looper: stopped", "name", l.name)
}

// Running reports whether the worker goroutine is alive.
func (l *Looper) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running && !l.exit
}

// Post enqueues m for delivery as soon as possible.
func (l *Looper) Post(m *Message) error {
	return l.PostDelayed(m, 0)
}

// PostDelayed enqueues m for delivery after delay. A message whose timeout
// does not exceed the delay could never be handled and is rejected: it is
// discarded and freed, and ErrTimeoutBeforeDelay is returned.
func (l *Looper) PostDelayed(m *Message, delay time.Duration) error {
	if m == nil {
		return domain.ErrNilMessage
	}
	if delay < 0 {
		delay = 0
	}

	now := time.Now()
	if m.Timeout > 0 {
		if m.Timeout <= delay {
			slog.Error("looper: timeout not greater than delay, discarding message",
				"name", l.name, "what", m.What, "timeout", m.Timeout, "delay", delay)
			m.state = StateDiscarded
			l.release(m)
			return fmt.Errorf("post what=%d: %w", m.What, domain.ErrTimeoutBeforeDelay)
		}
		m.deadline = now.Add(m.Timeout)
	}
	m.when = now.Add(delay)
	m.state = StatePending

	l.mu.Lock()
	if l.exit {
		l.mu.Unlock()
		m.state = StateDiscarded
		l.release(m)
		return fmt.Errorf("post what=%d: %w", m.What, domain.ErrLooperStopped)
	}
	l.insert(m)
	l.observeDepth()
	l.mu.Unlock()

	l.signal()
	return nil
}

// PostFront enqueues m ahead of every pending message.
func (l *Looper) PostFront(m *Message) error {
	if m == nil {
		return domain.ErrNilMessage
	}

	now := time.Now()
	if m.Timeout > 0 {
		m.deadline = now.Add(m.Timeout)
	}
	m.state = StatePending

	l.mu.Lock()
	if l.exit {
		l.mu.Unlock()
		m.state = StateDiscarded
		l.release(m)
		return fmt.Errorf("post what=%d: %w", m.What, domain.ErrLooperStopped)
	}
	m.when = now
	if len(l.queue) > 0 && l.queue[0].when.Before(now) {
		m.when = l.queue[0].when
	}
	l.queue = append([]*Message{m}, l.queue...)
	l.observeDepth()
	l.mu.Unlock()

	l.signal()
	return nil
}

// insert places m after the last message due no later than m. Callers hold mu.
func (l *Looper) insert(m *Message) {
	i := len(l.queue)
	for i > 0 && l.queue[i-1].when.After(m.when) {
		i--
	}
	l.queue = append(l.queue, nil)
	copy(l.queue[i+1:], l.queue[i:])
	l.queue[i] = m
}

// RemoveByTag discards every pending message with the given tag.
func (l *Looper) RemoveByTag(what int) int {
	return l.remove(func(m *Message) bool { return m.What == what })
}

// RemoveSelfByTag discards pending messages with the given tag posted by owner.
func (l *Looper) RemoveSelfByTag(owner any, what int) int {
	return l.remove(func(m *Message) bool { return m.What == what && m.Owner == owner })
}

// RemoveIf discards every pending message matching pred.
func (l *Looper) RemoveIf(pred func(m *Message) bool) int {
	return l.remove(pred)
}

// RemoveSelfIf discards pending messages posted by owner that match pred.
func (l *Looper) RemoveSelfIf(owner any, pred func(m *Message) bool) int {
	return l.remove(func(m *Message) bool { return m.Owner == owner && pred(m) })
}

// ClearSelf discards every pending message posted by owner.
func (l *Looper) ClearSelf(owner any) int {
	return l.remove(func(m *Message) bool { return m.Owner == owner })
}

// Clear discards every pending message.
func (l *Looper) Clear() int {
	return l.remove(func(*Message) bool { return true })
}

// Discard releases a message that was never posted or will not be posted
// again. Its discard and free callbacks run as for a removed message.
func (l *Looper) Discard(m *Message) {
	if m == nil {
		return
	}
	m.state = StateDiscarded
	l.release(m)
}

// Has reports whether a message with the given tag is pending.
func (l *Looper) Has(what int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.queue {
		if m.What == what {
			return true
		}
	}
	return false
}

// Len returns the number of pending messages.
func (l *Looper) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Snapshot returns the pending messages in delivery order.
func (l *Looper) Snapshot() []Info {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	infos := make([]Info, 0, len(l.queue))
	for _, m := range l.queue {
		infos = append(infos, Info{What: m.What, Arg1: m.Arg1, Arg2: m.Arg2, DueIn: m.when.Sub(now)})
	}
	return infos
}

// Dump logs the looper state and its pending messages.
func (l *Looper) Dump() {
	infos := l.Snapshot()
	slog.Info("looper: dump", "name", l.name, "running", l.Running(), "count", len(infos))
	for i, info := range infos {
		slog.Info("looper: pending message", "name", l.name, "index", i,
			"what", info.What, "arg1", info.Arg1, "arg2", info.Arg2, "due_in", info.DueIn)
	}
}

// remove unlinks matching messages under the lock and releases them after it,
// so callbacks may post to this looper.
func (l *Looper) remove(pred func(m *Message) bool) int {
	l.mu.Lock()
	var removed []*Message
	kept := l.queue[:0]
	for _, m := range l.queue {
		if pred(m) {
			removed = append(removed, m)
		} else {
			kept = append(kept, m)
		}
	}
	for i := len(kept); i < len(l.queue); i++ {
		l.queue[i] = nil
	}
	l.queue = kept
	l.observeDepth()
	l.mu.Unlock()

	for _, m := range removed {
		m.state = StateDiscarded
		l.release(m)
	}
	return len(removed)
}

func (l *Looper) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// loop must not take mu before closing ready: Start holds it until then.
func (l *Looper) loop(ready chan<- struct{}, done chan struct{}) {
	l.gid.Store(goroutineID())
	close(ready)

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	defer func() {
		timer.Stop()
		l.mu.Lock()
		l.running = false
		l.exit = false
		l.gid.Store(0)
		l.mu.Unlock()
		l.Clear()
		close(done)
	}()

	for {
		l.mu.Lock()
		if l.exit {
			l.mu.Unlock()
			return
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			<-l.wake
			continue
		}

		head := l.queue[0]
		now := time.Now()
		if wait := head.when.Sub(now); wait > 0 {
			l.mu.Unlock()
			timer.Reset(wait)
			select {
			case <-l.wake:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.observeDepth()
		l.mu.Unlock()

		l.dispatch(head, now)
	}
}

func (l *Looper) dispatch(m *Message, now time.Time) {
	switch {
	case !m.deadline.IsZero() && m.deadline.Before(now):
		slog.Error("looper: message timed out", "name", l.name, "what", m.What)
		m.state = StateTimeout
		if m.OnTimeout != nil {
			m.OnTimeout(m)
		}
	case m.OnHandle != nil:
		m.state = StateHandling
		m.OnHandle(m)
		m.state = StateHandled
	case l.handle != nil:
		m.state = StateHandling
		l.handle(m)
		m.state = StateHandled
	default:
		slog.Warn("looper: no message handler", "name", l.name, "what", m.What)
		m.state = StateDiscarded
	}
	l.release(m)
}

// release runs the discard and free callbacks for a message in a terminal state.
func (l *Looper) release(m *Message) {
	switch m.state {
	case StateHandled:
		metrics.LooperMessagesTotal.WithLabelValues(l.name, "handled").Inc()
	case StateTimeout:
		metrics.LooperMessagesTotal.WithLabelValues(l.name, "timeout").Inc()
	default:
		m.state = StateDiscarded
		metrics.LooperMessagesTotal.WithLabelValues(l.name, "discarded").Inc()
		if m.OnDiscard != nil {
			m.OnDiscard(m)
		}
	}

	if m.OnFree != nil {
		m.OnFree(m)
	} else if l.free != nil {
		l.free(m)
	}
}

// observeDepth publishes the queue length. Callers hold mu.
func (l *Looper) observeDepth() {
	metrics.LooperQueueDepth.WithLabelValues(l.name).Set(float64(len(l.queue)))
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine id from the stack header. It is
// only used to detect Stop being called from the worker itself.
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
