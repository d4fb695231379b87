package orchestrator

import (
	"log/slog"

	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/looper"
)

// pendingQueue buffers events raised while the microphone is open or the
// speaker is muted. Guarded by Service.mu.
type pendingQueue struct {
	msgs []*looper.Message
}

// add queues m, coalescing it with an already queued event of the same kind:
// a player change overwrites the queued reason, a speaker change with the
// same reason and a repeated user info query are absorbed. It reports whether
// m itself was queued; an absorbed or refused message is the caller's to release.
func (q *pendingQueue) add(m *looper.Message) bool {
	if m.What < whatSpeakerChanged {
		slog.Error("orchestrator: connection and microphone events are never deferred", "what", m.What)
		return false
	}

	for _, p := range q.msgs {
		if p.What != m.What {
			continue
		}
		switch m.What {
		case whatPlayerChanged:
			p.Arg1 = m.Arg1
			return false
		case whatSpeakerChanged:
			if p.Arg1 == m.Arg1 {
				return false
			}
		case whatQueryUserInfo:
			return false
		}
	}

	slog.Info("orchestrator: event deferred while microphone active or speaker muted", "what", m.What)
	q.msgs = append(q.msgs, m)
	metrics.PendingEvents.Set(float64(len(q.msgs)))
	return true
}

// drain empties the queue and returns its messages in arrival order.
func (q *pendingQueue) drain() []*looper.Message {
	msgs := q.msgs
	q.msgs = nil
	metrics.PendingEvents.Set(0)
	return msgs
}

func (q *pendingQueue) len() int {
	return len(q.msgs)
}
