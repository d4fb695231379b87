package orchestrator

import (
	"reflect"
	"sync"

	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/protocol"
)

// CommandListener receives every recognized gateway command.
type CommandListener interface {
	OnCommand(cmd *protocol.Command)
}

// TTSListener receives synthesized speech streamed by the gateway.
type TTSListener interface {
	OnTTS(data []byte, final bool)
}

// StatusListener receives connectivity and device status changes.
type StatusListener interface {
	OnStatus(status domain.Status)
}

// CommandListenerFunc adapts a function to CommandListener.
type CommandListenerFunc func(cmd *protocol.Command)

func (f CommandListenerFunc) OnCommand(cmd *protocol.Command) { f(cmd) }

// TTSListenerFunc adapts a function to TTSListener.
type TTSListenerFunc func(data []byte, final bool)

func (f TTSListenerFunc) OnTTS(data []byte, final bool) { f(data, final) }

// StatusListenerFunc adapts a function to StatusListener.
type StatusListenerFunc func(status domain.Status)

func (f StatusListenerFunc) OnStatus(status domain.Status) { f(status) }

// ListenerHandle identifies a registration for RemoveListener.
type ListenerHandle uint64

type entry[T any] struct {
	handle   ListenerHandle
	listener T
}

// registry holds the three listener lists. Notifications snapshot the list
// under the lock and call listeners outside it, so a listener may register
// or remove listeners.
type registry struct {
	mu       sync.Mutex
	next     ListenerHandle
	commands []entry[CommandListener]
	tts      []entry[TTSListener]
	statuses []entry[StatusListener]
}

// sameListener compares two listeners when their dynamic types allow it.
// Function adapters are never equal, so registering one twice adds it twice.
func sameListener(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func add[T any](r *registry, list *[]entry[T], l T) ListenerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range *list {
		if sameListener(e.listener, l) {
			return e.handle
		}
	}
	r.next++
	*list = append(*list, entry[T]{handle: r.next, listener: l})
	return r.next
}

func removeHandle[T any](list []entry[T], h ListenerHandle) ([]entry[T], bool) {
	for i, e := range list {
		if e.handle == h {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}

func snapshot[T any](r *registry, list *[]entry[T]) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(*list))
	for _, e := range *list {
		out = append(out, e.listener)
	}
	return out
}

func (r *registry) remove(h ListenerHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ok bool
	if r.commands, ok = removeHandle(r.commands, h); ok {
		return true
	}
	if r.tts, ok = removeHandle(r.tts, h); ok {
		return true
	}
	r.statuses, ok = removeHandle(r.statuses, h)
	return ok
}

func (r *registry) notifyCommand(cmd *protocol.Command) {
	for _, l := range snapshot(r, &r.commands) {
		l.OnCommand(cmd)
	}
}

func (r *registry) notifyTTS(data []byte, final bool) {
	for _, l := range snapshot(r, &r.tts) {
		l.OnTTS(data, final)
	}
}

func (r *registry) notifyStatus(status domain.Status) {
	for _, l := range snapshot(r, &r.statuses) {
		l.OnStatus(status)
	}
}

// AddCommandListener registers l. Registering the same listener again
// returns its existing handle.
func (s *Service) AddCommandListener(l CommandListener) (ListenerHandle, error) {
	if l == nil {
		return 0, domain.ErrNilAdapter
	}
	return add(&s.listeners, &s.listeners.commands, l), nil
}

// AddTTSListener registers l. Registering the same listener again returns
// its existing handle.
func (s *Service) AddTTSListener(l TTSListener) (ListenerHandle, error) {
	if l == nil {
		return 0, domain.ErrNilAdapter
	}
	return add(&s.listeners, &s.listeners.tts, l), nil
}

// AddStatusListener registers l. Registering the same listener again
// returns its existing handle.
func (s *Service) AddStatusListener(l StatusListener) (ListenerHandle, error) {
	if l == nil {
		return 0, domain.ErrNilAdapter
	}
	return add(&s.listeners, &s.listeners.statuses, l), nil
}

// RemoveListener unregisters the listener behind h, whatever its kind.
func (s *Service) RemoveListener(h ListenerHandle) bool {
	return s.listeners.remove(h)
}

// outbox collects notifications produced under the state lock so they can
// be delivered, in order, once it is released.
type outbox struct {
	reg   *registry
	calls []func()
}

func (o *outbox) status(st domain.Status) {
	o.calls = append(o.calls, func() { o.reg.notifyStatus(st) })
}

func (o *outbox) command(cmd *protocol.Command) {
	o.calls = append(o.calls, func() { o.reg.notifyCommand(cmd) })
}

func (o *outbox) deliver() {
	for _, call := range o.calls {
		call()
	}
}
