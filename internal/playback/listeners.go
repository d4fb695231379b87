package playback

import (
	"fmt"
	"sync"

	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/domain/models"
)

// StateListener receives player state changes. expectSpeech is set when the
// content asked for a spoken reply once it ends.
type StateListener interface {
	OnPlaybackState(stream models.Stream, state models.PlayerState, expectSpeech bool)
}

// StateListenerFunc adapts a function to StateListener.
type StateListenerFunc func(stream models.Stream, state models.PlayerState, expectSpeech bool)

func (f StateListenerFunc) OnPlaybackState(stream models.Stream, state models.PlayerState, expectSpeech bool) {
	f(stream, state, expectSpeech)
}

// ListenerHandle identifies a registered listener.
type ListenerHandle uint64

type listenerEntry struct {
	handle   ListenerHandle
	listener StateListener
}

type listeners struct {
	mu      sync.Mutex
	next    ListenerHandle
	entries []listenerEntry
}

// AddStateListener registers l. Listeners run on the arbiter goroutine and
// must not block.
func (a *Arbiter) AddStateListener(l StateListener) (ListenerHandle, error) {
	if l == nil {
		return 0, fmt.Errorf("add state listener: %w", domain.ErrNilAdapter)
	}
	a.listeners.mu.Lock()
	defer a.listeners.mu.Unlock()
	a.listeners.next++
	h := a.listeners.next
	a.listeners.entries = append(a.listeners.entries, listenerEntry{handle: h, listener: l})
	return h, nil
}

// RemoveStateListener unregisters the listener behind h.
func (a *Arbiter) RemoveStateListener(h ListenerHandle) bool {
	a.listeners.mu.Lock()
	defer a.listeners.mu.Unlock()
	for i, e := range a.listeners.entries {
		if e.handle == h {
			a.listeners.entries = append(a.listeners.entries[:i], a.listeners.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (ls *listeners) snapshot() []StateListener {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	out := make([]StateListener, len(ls.entries))
	for i, e := range ls.entries {
		out[i] = e.listener
	}
	return out
}

type stateChange struct {
	stream       models.Stream
	state        models.PlayerState
	expectSpeech bool
}

// outbox collects state changes raised under mu for delivery once it is
// released, so listeners may call back into the arbiter.
type outbox struct {
	changes []stateChange
}

func (o *outbox) state(stream models.Stream, state models.PlayerState, expectSpeech bool) {
	o.changes = append(o.changes, stateChange{stream, state, expectSpeech})
}

func (o *outbox) deliver(ls *listeners) {
	if len(o.changes) == 0 {
		return
	}
	targets := ls.snapshot()
	for _, c := range o.changes {
		for _, l := range targets {
			l.OnPlaybackState(c.stream, c.state, c.expectSpeech)
		}
	}
}
