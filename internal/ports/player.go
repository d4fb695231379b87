package ports

import "github.com/longregen/alicia-edge/internal/domain/models"

// PlayerStateListener receives state changes from a player. It may be called
// from any goroutine.
type PlayerStateListener func(stream models.Stream, state models.PlayerState)

// Player renders one audio stream. Calls return once the request has been
// accepted; the resulting state arrives through the state listener.
type Player interface {
	RegisterStateListener(listener PlayerStateListener) error
	SetDataSource(url string) error
	PrepareAsync() error
	// Write feeds stream data to a player prepared without a data source
	Write(data []byte, final bool) error
	Start() error
	Pause() error
	Resume() error
	Seek(positionMs int) error
	Stop() error
	Reset() error
	Position() (int, error)
	Duration() (int, error)
	Destroy()
}

// PlayerEngine creates players.
type PlayerEngine interface {
	Create(stream models.Stream) (Player, error)
}
