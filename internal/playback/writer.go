package playback

import (
	"log/slog"
	"sync"

	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/ports"
)

type ttsFrame struct {
	id    int
	data  []byte
	final bool
}

// ttsWriter feeds speech frames to the TTS player from its own goroutine, so
// a slow engine write never stalls the arbiter looper.
//
// Frames carry the id of the speech stream they belong to. Only frames of
// the stream the TTS player was prepared for are written; frames of older
// streams are dropped and frames of newer ones wait for their turn. Once
// closeEpoch returns no frame of the closed stream reaches the player.
type ttsWriter struct {
	player ports.Player

	mu      sync.Mutex
	cond    *sync.Cond
	frames  []ttsFrame
	open    bool
	id      int
	writing bool
	running bool
	done    chan struct{}
}

func newTTSWriter(player ports.Player) *ttsWriter {
	w := &ttsWriter{player: player}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *ttsWriter) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.done = make(chan struct{})
	go w.run(w.done)
}

// stop wakes the writer and waits for it to exit.
func (w *ttsWriter) stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	done := w.done
	w.cond.Broadcast()
	w.mu.Unlock()
	<-done
}

func (w *ttsWriter) push(f ttsFrame) {
	w.mu.Lock()
	w.frames = append(w.frames, f)
	w.cond.Broadcast()
	w.mu.Unlock()
}

// openEpoch lets frames of stream id through to the player.
func (w *ttsWriter) openEpoch(id int) {
	w.mu.Lock()
	w.id = id
	w.open = true
	w.cond.Broadcast()
	w.mu.Unlock()
}

// closeEpoch stops writing and drops what is left of the current stream. It
// waits for a write already handed to the player.
func (w *ttsWriter) closeEpoch() {
	w.mu.Lock()
	w.open = false
	for w.writing {
		w.cond.Wait()
	}
	w.dropLocked(w.id)
	w.mu.Unlock()
}

// drop removes every frame of stream id.
func (w *ttsWriter) drop(id int) {
	w.mu.Lock()
	w.dropLocked(id)
	w.mu.Unlock()
}

func (w *ttsWriter) dropLocked(id int) {
	kept := w.frames[:0]
	for _, f := range w.frames {
		if f.id != id {
			kept = append(kept, f)
		}
	}
	clear(w.frames[len(kept):])
	w.frames = kept
}

// clear drops every queued frame.
func (w *ttsWriter) clear() {
	w.mu.Lock()
	clear(w.frames)
	w.frames = nil
	w.mu.Unlock()
}

func (w *ttsWriter) pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.frames)
}

// next pops the frame to write, if any. Callers hold mu.
func (w *ttsWriter) next() (ttsFrame, bool) {
	stale := 0
	for stale < len(w.frames) && w.frames[stale].id < w.id {
		stale++
	}
	if stale > 0 {
		metrics.TTSFramesDropped.Add(float64(stale))
		clear(w.frames[:stale])
		w.frames = w.frames[stale:]
	}
	if !w.open || len(w.frames) == 0 || w.frames[0].id != w.id {
		return ttsFrame{}, false
	}
	f := w.frames[0]
	w.frames[0] = ttsFrame{}
	w.frames = w.frames[1:]
	return f, true
}

func (w *ttsWriter) run(done chan struct{}) {
	defer close(done)
	for {
		w.mu.Lock()
		w.writing = false
		w.cond.Broadcast()
		f, ok := w.next()
		for !ok && w.running {
			w.cond.Wait()
			f, ok = w.next()
		}
		if !w.running {
			w.mu.Unlock()
			return
		}
		w.writing = true
		w.mu.Unlock()

		if err := w.player.Write(f.data, f.final); err != nil {
			slog.Warn("playback: tts write failed", "id", f.id, "size", len(f.data), "final", f.final, "error", err)
		}
	}
}
