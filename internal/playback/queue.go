package playback

import (
	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/domain/models"
)

// entry is queued content waiting for its player.
type entry struct {
	stream       models.Stream
	url          string
	id           int
	expectSpeech bool
}

// purgeMode selects which entries a purge removes.
type purgeMode int

const (
	purgeAll purgeMode = iota
	// purgeTTS removes speech only
	purgeTTS
	// purgePlayOnce removes speech and ordinary prompts, keeping wakeup prompts
	purgePlayOnce
	// purgeAllPlayOnce removes everything but music
	purgeAllPlayOnce
)

func (m purgeMode) matches(s models.Stream) bool {
	switch m {
	case purgeAll:
		return true
	case purgeTTS:
		return s == models.StreamTTS
	case purgePlayOnce:
		return s != models.StreamMusic && s != models.StreamPromptWakeup
	case purgeAllPlayOnce:
		return s != models.StreamMusic
	default:
		return false
	}
}

// playQueue orders pending content. Speech and prompts go ahead of any music;
// music always goes last.
type playQueue struct {
	entries []entry
}

func (q *playQueue) add(e entry) {
	defer q.observe()

	if e.stream == models.StreamMusic {
		q.entries = append(q.entries, e)
		return
	}

	// A wakeup prompt replaces any wakeup prompt queued ahead of music.
	kept := q.entries[:0]
	at := -1
	for _, cur := range q.entries {
		if at < 0 && cur.stream == models.StreamMusic {
			at = len(kept)
		}
		if at < 0 && e.stream == models.StreamPromptWakeup && cur.stream == models.StreamPromptWakeup {
			continue
		}
		kept = append(kept, cur)
	}
	q.entries = kept
	if at < 0 {
		q.entries = append(q.entries, e)
		return
	}
	q.entries = append(q.entries, entry{})
	copy(q.entries[at+1:], q.entries[at:])
	q.entries[at] = e
}

// purge removes the entries selected by mode.
func (q *playQueue) purge(mode purgeMode) int {
	return q.removeIf(func(e entry) bool { return mode.matches(e.stream) })
}

// removeTTS removes the queued speech stream with the given id.
func (q *playQueue) removeTTS(id int) bool {
	return q.removeIf(func(e entry) bool { return e.stream == models.StreamTTS && e.id == id }) > 0
}

func (q *playQueue) removeIf(pred func(e entry) bool) int {
	kept := q.entries[:0]
	for _, e := range q.entries {
		if !pred(e) {
			kept = append(kept, e)
		}
	}
	removed := len(q.entries) - len(kept)
	clear(q.entries[len(kept):])
	q.entries = kept
	q.observe()
	return removed
}

// front returns the next entry to play.
func (q *playQueue) front() (entry, bool) {
	if len(q.entries) == 0 {
		return entry{}, false
	}
	return q.entries[0], true
}

func (q *playQueue) pop() {
	if len(q.entries) == 0 {
		return
	}
	q.entries[0] = entry{}
	q.entries = q.entries[1:]
	q.observe()
}

// playOncePending reports whether the next entry interrupts music.
func (q *playQueue) playOncePending() bool {
	e, ok := q.front()
	return ok && e.stream.PlayOnce()
}

func (q *playQueue) len() int {
	return len(q.entries)
}

func (q *playQueue) observe() {
	metrics.PlayQueueDepth.Set(float64(len(q.entries)))
}
