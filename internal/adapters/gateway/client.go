package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/adapters/retry"
	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/ports"
)

// ErrPongTimeout is reported through OnDisconnected when a heartbeat goes unanswered.
var ErrPongTimeout = errors.New("pong timeout")

// Config contains configuration for the gateway client
type Config struct {
	// HandshakeTimeout bounds the websocket opening handshake
	HandshakeTimeout time.Duration
	// WriteTimeout is the write deadline applied to every frame
	WriteTimeout time.Duration
	// PongTimeout is how long a ping may stay unanswered before the connection is dropped
	PongTimeout time.Duration
	// TickInterval is how often the worker checks the heartbeat
	TickInterval time.Duration
	// QueueSize bounds the pending command queue
	QueueSize int
	// ReadChunkSize is the size of each binary chunk delivered to OnBinary
	ReadChunkSize int
}

// DefaultConfig returns the default gateway client configuration
func DefaultConfig() *Config {
	return &Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		PongTimeout:      3 * time.Second,
		TickInterval:     20 * time.Millisecond,
		QueueSize:        100,
		ReadChunkSize:    4096,
	}
}

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

type commandKind int

const (
	cmdSendText commandKind = iota
	cmdSendBinary
	cmdDisconnect
)

type command struct {
	kind     commandKind
	data     []byte
	fragment domain.FragmentKind
}

type inboundKind int

const (
	inText inboundKind = iota
	inBinary
	inPong
	inClosed
)

// inbound is one item from the reader. An inClosed item carries the read
// error and is always the last one.
type inbound struct {
	kind     inboundKind
	data     []byte
	first    bool
	final    bool
	fragment domain.FragmentKind
	err      error
}

// Client manages a single websocket connection to the cloud gateway. All
// writes happen on one worker goroutine fed by a bounded command queue; a
// reader goroutine forwards incoming data to the worker. Reconnecting is the
// caller's decision.
type Client struct {
	config    *Config
	callbacks ports.TransportCallbacks

	mu        sync.RWMutex
	state     State
	heartbeat time.Duration
	cancel    context.CancelFunc
	done      chan struct{}

	commands chan command
}

// NewClient creates a new gateway client
func NewClient(config *Config, callbacks ports.TransportCallbacks) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		config:    config,
		callbacks: callbacks,
		commands:  make(chan command, config.QueueSize),
	}
}

var _ ports.Transport = (*Client)(nil)

// NewFactory returns a factory that builds clients sharing config.
func NewFactory(config *Config) ports.TransportFactory {
	return func(callbacks ports.TransportCallbacks) ports.Transport {
		return NewClient(config, callbacks)
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// SetHeartbeat sets the idle interval after which a ping is sent. Values below
// the pong timeout are raised to it; zero disables the heartbeat.
func (c *Client) SetHeartbeat(interval time.Duration) {
	if interval > 0 && interval < c.config.PongTimeout {
		interval = c.config.PongTimeout
	}
	c.mu.Lock()
	c.heartbeat = interval
	c.mu.Unlock()
}

// Connect starts a connection attempt. The outcome is reported through
// OnConnected or OnDisconnected.
func (c *Client) Connect(info ports.ConnectInfo) error {
	if !strings.HasPrefix(info.URL, "ws://") && !strings.HasPrefix(info.URL, "wss://") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidURL, info.URL)
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return domain.ErrAlreadyConnected
	}
	c.state = StateConnecting
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.drainCommands()

	go c.run(ctx, cancel, info, done)
	return nil
}

// Disconnect closes the connection, or aborts a connection attempt in progress.
func (c *Client) Disconnect() error {
	c.mu.RLock()
	state := c.state
	cancel := c.cancel
	c.mu.RUnlock()

	switch state {
	case StateDisconnected:
		return nil
	case StateConnecting:
		if cancel != nil {
			cancel()
		}
		return nil
	}
	return c.enqueue(command{kind: cmdDisconnect})
}

// Close disconnects and waits for the worker goroutine to exit.
func (c *Client) Close() {
	c.mu.RLock()
	done := c.done
	cancel := c.cancel
	c.mu.RUnlock()

	_ = c.Disconnect()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// SendText queues a copy of data as a text message.
func (c *Client) SendText(data []byte) error {
	return c.SendTextOwned(append([]byte(nil), data...))
}

// SendTextOwned queues data as a text message without copying. The client
// owns data from this call on, whether or not it is accepted.
func (c *Client) SendTextOwned(data []byte) error {
	if !c.IsConnected() {
		return domain.ErrNotConnected
	}
	return c.enqueue(command{kind: cmdSendText, data: data})
}

// SendBinary queues a copy of data as a binary chunk of the given kind.
func (c *Client) SendBinary(data []byte, kind domain.FragmentKind) error {
	if !c.IsConnected() {
		return domain.ErrNotConnected
	}
	return c.enqueue(command{kind: cmdSendBinary, data: append([]byte(nil), data...), fragment: kind})
}

func (c *Client) enqueue(cmd command) error {
	select {
	case c.commands <- cmd:
		return nil
	default:
		slog.Warn("gateway: command queue full, dropping", "kind", cmd.kind)
		return domain.ErrQueueFull
	}
}

func (c *Client) drainCommands() {
	for {
		select {
		case <-c.commands:
		default:
			return
		}
	}
}

func (c *Client) dial(ctx context.Context, info ports.ConnectInfo) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	if len(info.CACert) > 0 {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(info.CACert) {
			return nil, fmt.Errorf("parse ca cert: no certificates found")
		}
		dialer.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	start := time.Now()
	conn, resp, err := dialer.DialContext(ctx, info.URL, info.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	metrics.GatewayConnectDuration.Observe(time.Since(start).Seconds())
	metrics.GatewayConnectsTotal.WithLabelValues(retry.Classify(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", info.URL, err)
	}
	return conn, nil
}

// run is the worker goroutine for one connection.
func (c *Client) run(ctx context.Context, cancel context.CancelFunc, info ports.ConnectInfo, done chan struct{}) {
	defer close(done)
	defer cancel()

	conn, err := c.dial(ctx, info)
	if err != nil {
		slog.Error("gateway: connect failed", "url", info.URL, "error", err)
		c.setState(StateDisconnected)
		if c.callbacks != nil {
			c.callbacks.OnDisconnected(err)
		}
		return
	}

	c.setState(StateConnected)
	metrics.GatewayConnected.Set(1)
	slog.Info("gateway: connected", "url", info.URL)
	if c.callbacks != nil {
		c.callbacks.OnConnected()
	}

	w := &worker{
		client:   c,
		conn:     conn,
		incoming: make(chan inbound, 16),
		stop:     make(chan struct{}),
		active:   time.Now(),
	}
	err = w.loop(ctx)

	c.setState(StateDisconnected)
	metrics.GatewayConnected.Set(0)
	slog.Info("gateway: disconnected", "url", info.URL, "error", err)
	if c.callbacks != nil {
		c.callbacks.OnDisconnected(err)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) heartbeatInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heartbeat
}

// worker holds the per-connection state owned by the worker goroutine.
type worker struct {
	client   *Client
	conn     *websocket.Conn
	incoming chan inbound
	stop     chan struct{}

	fragment io.WriteCloser
	text     textAssembler

	active      time.Time
	pingPending bool
	pingSent    time.Time
}

// loop serves commands and incoming data until the connection ends. It
// returns nil for a requested disconnect.
func (w *worker) loop(ctx context.Context) error {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		w.readPump()
	}()

	ticker := time.NewTicker(w.client.config.TickInterval)
	defer ticker.Stop()

	var result error
	for result == nil {
		select {
		case <-ctx.Done():
			w.closeGracefully()
			result = errDisconnectRequested
		case cmd := <-w.client.commands:
			if err := w.execute(cmd); err != nil {
				result = err
			}
		case in := <-w.incoming:
			if in.kind == inClosed {
				if websocket.IsUnexpectedCloseError(in.err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("gateway: read error", "error", in.err)
				}
				result = in.err
				break
			}
			w.deliver(in)
		case now := <-ticker.C:
			if err := w.checkHeartbeat(now); err != nil {
				result = err
			}
		}
	}

	close(w.stop)
	_ = w.conn.Close()
	<-readerDone

	if errors.Is(result, errDisconnectRequested) {
		return nil
	}
	return result
}

var errDisconnectRequested = errors.New("disconnect requested")

func (w *worker) execute(cmd command) error {
	switch cmd.kind {
	case cmdDisconnect:
		w.closeGracefully()
		return errDisconnectRequested
	case cmdSendText:
		if err := w.writeText(cmd.data); err != nil {
			slog.Error("gateway: send text failed", "error", err)
			return err
		}
		metrics.GatewayFramesSent.WithLabelValues("text").Inc()
	case cmdSendBinary:
		if err := w.writeBinary(cmd.data, cmd.fragment); err != nil {
			slog.Error("gateway: send binary failed", "kind", cmd.fragment, "error", err)
			return err
		}
		metrics.GatewayFramesSent.WithLabelValues(cmd.fragment.String()).Inc()
	}
	w.active = time.Now()
	return nil
}

func (w *worker) deadline() time.Time {
	return time.Now().Add(w.client.config.WriteTimeout)
}

func (w *worker) writeText(data []byte) error {
	if w.fragment != nil {
		slog.Warn("gateway: text sent inside a binary message, closing it")
		_ = w.fragment.Close()
		w.fragment = nil
	}
	_ = w.conn.SetWriteDeadline(w.deadline())
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *worker) writeBinary(data []byte, kind domain.FragmentKind) error {
	_ = w.conn.SetWriteDeadline(w.deadline())

	switch kind {
	case domain.FragmentWhole:
		if w.fragment != nil {
			_ = w.fragment.Close()
			w.fragment = nil
		}
		return w.conn.WriteMessage(websocket.BinaryMessage, data)

	case domain.FragmentStart:
		if w.fragment != nil {
			_ = w.fragment.Close()
		}
		fw, err := w.conn.NextWriter(websocket.BinaryMessage)
		if err != nil {
			w.fragment = nil
			return err
		}
		w.fragment = fw

	default:
		if w.fragment == nil {
			fw, err := w.conn.NextWriter(websocket.BinaryMessage)
			if err != nil {
				return err
			}
			w.fragment = fw
		}
	}

	if len(data) > 0 {
		if _, err := w.fragment.Write(data); err != nil {
			w.fragment = nil
			return err
		}
	}
	if kind == domain.FragmentFinish {
		err := w.fragment.Close()
		w.fragment = nil
		return err
	}
	return nil
}

func (w *worker) checkHeartbeat(now time.Time) error {
	interval := w.client.heartbeatInterval()
	if interval <= 0 {
		return nil
	}

	if w.pingPending {
		if now.Sub(w.pingSent) > w.client.config.PongTimeout {
			slog.Warn("gateway: pong timeout, dropping connection", "waited", now.Sub(w.pingSent))
			metrics.GatewayPongTimeouts.Inc()
			return ErrPongTimeout
		}
		return nil
	}

	if now.After(w.active.Add(interval)) {
		if err := w.conn.WriteControl(websocket.PingMessage, nil, w.deadline()); err != nil {
			slog.Error("gateway: failed to send ping", "error", err)
			return err
		}
		w.pingPending = true
		w.pingSent = now
		w.active = now
	}
	return nil
}

func (w *worker) closeGracefully() {
	if w.fragment != nil {
		_ = w.fragment.Close()
		w.fragment = nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, w.deadline())
}

func (w *worker) deliver(in inbound) {
	w.active = time.Now()
	cb := w.client.callbacks

	switch in.kind {
	case inPong:
		w.pingPending = false

	case inText:
		if msg, ok := w.text.feed(in.data, in.first, in.final); ok {
			metrics.GatewayFramesReceived.WithLabelValues("text").Inc()
			if cb != nil {
				cb.OnText(msg)
			}
		}

	case inBinary:
		metrics.GatewayFramesReceived.WithLabelValues(in.fragment.String()).Inc()
		if cb != nil {
			cb.OnBinary(in.data, in.fragment)
		}
	}
}

// forward hands data to the worker unless the connection is shutting down.
func (w *worker) forward(in inbound) bool {
	select {
	case w.incoming <- in:
		return true
	case <-w.stop:
		return false
	}
}

// readPump reads messages from the websocket connection and forwards them
// to the worker in chunks, followed by the error that ended the read.
func (w *worker) readPump() {
	w.conn.SetPongHandler(func(string) error {
		w.forward(inbound{kind: inPong})
		return nil
	})

	for {
		messageType, r, err := w.conn.NextReader()
		if err != nil {
			w.forward(inbound{kind: inClosed, err: err})
			return
		}

		switch messageType {
		case websocket.TextMessage:
			err = w.readChunks(r, func(chunk []byte, first, last bool) bool {
				return w.forward(inbound{kind: inText, data: chunk, first: first, final: last})
			})
		case websocket.BinaryMessage:
			err = w.readChunks(r, func(chunk []byte, first, last bool) bool {
				switch {
				case first && last:
					return w.forward(inbound{kind: inBinary, data: chunk, fragment: domain.FragmentWhole})
				case first:
					if !w.forward(inbound{kind: inBinary, fragment: domain.FragmentStart}) {
						return false
					}
					return w.forward(inbound{kind: inBinary, data: chunk, fragment: domain.FragmentContinue})
				case last:
					return w.forward(inbound{kind: inBinary, data: chunk, fragment: domain.FragmentFinish})
				default:
					return w.forward(inbound{kind: inBinary, data: chunk, fragment: domain.FragmentContinue})
				}
			})
		}
		if err != nil {
			if !errors.Is(err, errStopped) {
				w.forward(inbound{kind: inClosed, err: err})
			}
			return
		}
	}
}

var errStopped = errors.New("reader stopped")

// readChunks splits one message into chunks, looking one chunk ahead so the
// last one can be flagged.
func (w *worker) readChunks(r io.Reader, emit func(chunk []byte, first, last bool) bool) error {
	size := w.client.config.ReadChunkSize
	if size <= 0 {
		size = 4096
	}

	var pending []byte
	first := true
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if pending != nil {
				if !emit(pending, first, false) {
					return errStopped
				}
				first = false
			}
			pending = buf[:n]
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return err
		}
	}

	if pending == nil {
		pending = []byte{}
	}
	if !emit(pending, first, true) {
		return errStopped
	}
	return nil
}
