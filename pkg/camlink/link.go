// Package camlink provides a request/reply client for one vision coprocessor.
//
// A Link owns a single WebSocket connection. Replies are matched to requests by
// adjacency: the coprocessor answers the outstanding command before the next is
// sent, so a Link never has more than one request in flight.
package camlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-tagvision/pkg/protocol"
)

// State is the connection state of a Link.
type State int32

const (
	Disconnected State = iota
	Connected
	AwaitingReply
)

// String returns the state name
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case AwaitingReply:
		return "awaiting_reply"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// session is one open websocket connection and its read loop.
type session struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Link is a reconnecting request/reply client for one coprocessor.
type Link struct {
	addr   string
	url    string
	id     string
	config *Config
	logger *slog.Logger

	// Connection (connMu also serializes writes)
	sess   *session
	connMu sync.Mutex

	// Only one query may wait for a reply at a time
	queryMu sync.Mutex

	// Reply delivery
	gate      chan string // One-shot gate of the in-flight query, nil when idle
	lastReply string      // Most recent reply, kept until Clear
	pendingMu sync.Mutex

	state atomic.Int32
}

// New creates a link to the coprocessor at host:port. It does not connect.
func New(addr string, opts ...Option) (*Link, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil || addr == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.NewString()[:8]
	return &Link{
		addr:   addr,
		url:    "ws://" + addr,
		id:     id,
		config: cfg,
		logger: cfg.Logger.With("component", "camlink", "addr", addr, "link", id),
	}, nil
}

// Addr returns the coprocessor address (host:port)
func (l *Link) Addr() string {
	return l.addr
}

// ID returns the link's session identifier used in logs
func (l *Link) ID() string {
	return l.id
}

// Rotation returns the camera mount rotation in degrees
func (l *Link) Rotation() float64 {
	return l.config.Rotation
}

// Timeout returns the default query timeout
func (l *Link) Timeout() time.Duration {
	return l.config.Timeout
}

// State returns the current connection state
func (l *Link) State() State {
	return State(l.state.Load())
}

// IsConnected reports whether the connection is open in both directions.
func (l *Link) IsConnected() bool {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if l.sess == nil {
		return false
	}
	select {
	case <-l.sess.done:
		return false
	default:
		return true
	}
}

// Connect dials the coprocessor. Any previous connection is closed first.
// Failures are reported as *ConnectionError.
func (l *Link) Connect(ctx context.Context) error {
	l.queryMu.Lock()
	defer l.queryMu.Unlock()
	return l.connect(ctx)
}

func (l *Link) connect(ctx context.Context) error {
	l.closeSession()

	dialCtx, cancel := context.WithTimeout(ctx, l.config.HandshakeTimeout)
	defer cancel()

	dialer := l.config.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: l.config.HandshakeTimeout}
	}

	conn, resp, err := dialer.DialContext(dialCtx, l.url, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		} else {
			err = fmt.Errorf("websocket dial failed: %w", err)
		}
		return &ConnectionError{Addr: l.addr, Err: err}
	}

	sess := &session{conn: conn, done: make(chan struct{})}
	l.connMu.Lock()
	l.sess = sess
	l.connMu.Unlock()
	l.state.Store(int32(Connected))

	go l.readLoop(sess)

	if l.config.Probe {
		res := l.exchange(ctx, protocol.CmdInfo, l.config.HandshakeTimeout)
		if !res.OK() {
			l.closeSession()
			err := res.Err
			if err == nil {
				err = ErrNoReply
			}
			return &ConnectionError{Addr: l.addr, Err: fmt.Errorf("probe: %w", err)}
		}
	}

	l.logger.Info("connected")
	return nil
}

// Disconnect closes the connection. It is safe to call more than once.
func (l *Link) Disconnect() error {
	l.connMu.Lock()
	sess := l.sess
	l.sess = nil
	var err error
	if sess != nil {
		sess.conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
		err = sess.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	l.connMu.Unlock()

	l.state.Store(int32(Disconnected))
	if sess == nil {
		return nil
	}
	sess.close()
	l.logger.Info("disconnected")
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("send close frame: %w", err)
	}
	return nil
}

// Send writes a command without waiting for a reply.
func (l *Link) Send(cmd string) error {
	return l.write(cmd)
}

// Query sends cmd and waits up to timeout for the reply. A missing reply and an
// unreachable coprocessor both yield ("", false); use Do to tell them apart.
func (l *Link) Query(ctx context.Context, cmd string, timeout time.Duration) (string, bool) {
	res := l.Do(ctx, cmd, timeout)
	return res.Reply, res.OK()
}

// Do sends cmd and waits up to timeout for the reply.
//
// If the link is disconnected, or the send fails, it reconnects once and
// retries once. There is no further retry and no backoff; periodic callers
// simply ask again on their next cycle.
func (l *Link) Do(ctx context.Context, cmd string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = l.config.Timeout
	}

	l.queryMu.Lock()
	defer l.queryMu.Unlock()

	reconnected := false
	if !l.IsConnected() {
		if err := l.connect(ctx); err != nil {
			l.logger.Debug("reconnect failed", "cmd", cmd, "error", err)
			return fault(err)
		}
		reconnected = true
	}

	res := l.exchange(ctx, cmd, timeout)
	if res.Status == StatusFault && isSendFailure(res.Err) && !reconnected {
		l.logger.Warn("send failed, reconnecting", "cmd", cmd, "error", res.Err)
		if err := l.connect(ctx); err != nil {
			return fault(err)
		}
		res = l.exchange(ctx, cmd, timeout)
	}

	if res.Status == StatusAbsent {
		l.logger.Debug("no reply", "cmd", cmd, "timeout", timeout)
	}
	return res
}

// LastReply returns the most recent reply received since the last Clear.
func (l *Link) LastReply() string {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	return l.lastReply
}

// Clear empties the reply buffer.
func (l *Link) Clear() {
	l.pendingMu.Lock()
	l.lastReply = ""
	l.pendingMu.Unlock()
}

// sendError marks a failure to put the command on the wire.
type sendError struct{ err error }

func (e *sendError) Error() string { return "send: " + e.err.Error() }
func (e *sendError) Unwrap() error { return e.err }

func isSendFailure(err error) bool {
	var se *sendError
	return errors.As(err, &se)
}

// exchange performs one send-and-wait cycle through a fresh one-shot gate.
func (l *Link) exchange(ctx context.Context, cmd string, timeout time.Duration) Result {
	gate := make(chan string, 1)

	l.pendingMu.Lock()
	l.gate = gate
	l.pendingMu.Unlock()
	defer l.dropGate(gate)

	l.connMu.Lock()
	sess := l.sess
	l.connMu.Unlock()
	if sess == nil {
		return fault(&sendError{err: ErrNotConnected})
	}

	if err := l.write(cmd); err != nil {
		return fault(&sendError{err: err})
	}
	l.state.Store(int32(AwaitingReply))
	defer l.state.CompareAndSwap(int32(AwaitingReply), int32(Connected))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-gate:
		return replied(reply)
	case <-timer.C:
		return absent()
	case <-sess.done:
		return fault(ErrConnectionLost)
	case <-ctx.Done():
		return fault(ctx.Err())
	}
}

// dropGate discards a gate so a late reply cannot satisfy a later query.
func (l *Link) dropGate(gate chan string) {
	l.pendingMu.Lock()
	if l.gate == gate {
		l.gate = nil
	}
	l.pendingMu.Unlock()
}

func (l *Link) write(cmd string) error {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.sess == nil {
		return ErrNotConnected
	}
	conn := l.sess.conn
	conn.SetWriteDeadline(time.Now().Add(l.config.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		l.dropSessionLocked()
		return err
	}
	return nil
}

// readLoop delivers incoming text frames until the connection closes.
func (l *Link) readLoop(sess *session) {
	defer func() {
		l.connMu.Lock()
		if l.sess == sess {
			l.dropSessionLocked()
		}
		l.connMu.Unlock()
	}()

	for {
		msgType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		l.deliver(string(data))
	}
}

// deliver fires the in-flight gate, if any, exactly once.
func (l *Link) deliver(reply string) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()

	l.lastReply = reply
	if l.gate == nil {
		l.logger.Debug("unsolicited reply dropped", "bytes", len(reply))
		return
	}
	select {
	case l.gate <- reply:
	default:
	}
	l.gate = nil
}

func (l *Link) closeSession() {
	l.connMu.Lock()
	l.dropSessionLocked()
	l.connMu.Unlock()
}

// dropSessionLocked must be called with connMu held.
func (l *Link) dropSessionLocked() {
	if l.sess == nil {
		return
	}
	l.sess.close()
	l.sess = nil
	l.state.Store(int32(Disconnected))
}
