package ports

import (
	"net/http"
	"time"

	"github.com/longregen/alicia-edge/internal/domain"
)

// ConnectInfo describes the gateway endpoint.
type ConnectInfo struct {
	// URL must use the ws or wss scheme
	URL string
	// CACert is an optional PEM bundle trusted for wss
	CACert []byte
	Header http.Header
}

// TransportCallbacks receives transport events. Implementations are called
// from the transport's worker goroutine and must not block.
type TransportCallbacks interface {
	// OnConnected is called when the handshake succeeds
	OnConnected()
	// OnDisconnected is called when a connect attempt fails or an established
	// connection ends. err is nil for a requested disconnect.
	OnDisconnected(err error)
	// OnText is called with each complete text message
	OnText(data []byte)
	// OnBinary is called with each binary chunk
	OnBinary(data []byte, kind domain.FragmentKind)
}

// Transport is a single gateway connection. Reconnecting is the caller's job.
type Transport interface {
	Connect(info ConnectInfo) error
	Disconnect() error
	IsConnected() bool
	SetHeartbeat(interval time.Duration)
	SendText(data []byte) error
	SendBinary(data []byte, kind domain.FragmentKind) error
}

// TransportFactory builds a transport that reports to callbacks.
type TransportFactory func(callbacks TransportCallbacks) Transport
