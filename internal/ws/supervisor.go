package ws

import (
	"context"
	"net/url"
	"strings"
	"time"

	"sync"

	"github.com/gorilla/websocket"

	"farm-alert-service/internal/logging"
)

// State is the supervisor's connection lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the supervisor's connection and retry policy.
type Config struct {
	URL         string
	BaseDelay   time.Duration
	CapDelay    time.Duration
	MaxAttempts int
	DialTimeout time.Duration
}

// Events are optional lifecycle callbacks for observability. Set before
// Connect; none fire after Shutdown. Failures never surface as panics or
// errors across this boundary, only as these transitions.
type Events struct {
	OnConnected    func()
	OnDisconnected func(err error)
	OnReconnecting func(attempt int, delay time.Duration)
	OnFailed       func()
}

// Supervisor owns at most one live duplex channel: it establishes it with
// the latest bearer token, detects closure, and retries abnormal drops with
// capped exponential backoff until attempts are exhausted. Superseded
// connections are fully torn down before a replacement is installed, and at
// most one reconnect timer is ever pending.
type Supervisor struct {
	cfg    Config
	tokens TokenSource
	router *Router
	logger *logging.Logger

	// Dial is the channel transport. Replaceable before Connect.
	Dial DialFunc
	// Events, when set before Connect, receives lifecycle transitions.
	Events Events

	mu       sync.Mutex
	state    State
	conn     Conn
	attempts int
	failed   bool
	shutdown bool
	timer    *time.Timer
	gen      int // invalidates callbacks from superseded connections
}

// NewSupervisor constructs a Supervisor in the idle state. Defaults: base
// delay 1s, cap 30s, 3 attempts, 10s dial timeout.
func NewSupervisor(cfg Config, tokens TokenSource, router *Router, logger *logging.Logger) *Supervisor {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.CapDelay <= 0 {
		cfg.CapDelay = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Supervisor{
		cfg:    cfg,
		tokens: tokens,
		router: router,
		logger: logger,
		Dial:   Dial,
	}
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailedPermanently reports whether reconnect attempts are exhausted for
// this session. Dependent logic should degrade to polling once this is set.
func (s *Supervisor) FailedPermanently() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Connect starts establishing the channel. It is a no-op while already
// connecting or open, after permanent failure or shutdown, and while no
// token has been issued yet (callers retry once a token arrives).
func (s *Supervisor) Connect() {
	s.mu.Lock()
	if s.shutdown || s.failed || s.state == StateConnecting || s.state == StateOpen {
		s.mu.Unlock()
		return
	}
	var token string
	if s.tokens != nil {
		token = s.tokens.Token()
	}
	if token == "" {
		s.logger.Debugf("Live connect deferred: no access token yet")
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.establish(gen, token)
}

func (s *Supervisor) establish(gen int, token string) {
	target := s.cfg.URL
	if strings.Contains(target, "?") {
		target += "&token=" + url.QueryEscape(token)
	} else {
		target += "?token=" + url.QueryEscape(token)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.DialTimeout)
	conn, err := s.Dial(ctx, target)
	cancel()

	s.mu.Lock()
	if gen != s.gen || s.shutdown {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.logger.Errorf("Live connect failed: %v", err)
		s.downLocked(err, false)
		return
	}

	s.conn = conn
	s.state = StateOpen
	s.attempts = 0 // reset-on-success
	// A timer armed by an earlier failed dial belongs to the superseded
	// session; the open connection owns the schedule now.
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.router.bind(func(data []byte) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
	s.mu.Unlock()

	s.logger.Infof("Live channel open: %s", s.cfg.URL)
	s.emit(s.Events.OnConnected)

	go s.readLoop(gen, conn)
}

func (s *Supervisor) readLoop(gen int, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(gen, err)
			return
		}
		s.router.Dispatch(data)
	}
}

func (s *Supervisor) handleClose(gen int, err error) {
	s.mu.Lock()
	if gen != s.gen || s.shutdown {
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.router.unbind()

	graceful := websocket.IsCloseError(err, websocket.CloseNormalClosure)
	s.logger.Warnf("Live channel closed: %v", err)
	if graceful {
		// Terminal for this session; no reconnect.
		s.state = StateClosed
		s.mu.Unlock()
		if fn := s.Events.OnDisconnected; fn != nil {
			s.emit(func() { fn(err) })
		}
		return
	}
	s.downLocked(err, true)
}

// downLocked handles an abnormal drop: it transitions to closed, schedules
// at most one reconnect, or flips to failed once attempts are exhausted.
// Called with s.mu held and emits events after releasing it. notify controls
// whether OnDisconnected fires (dial failures never had a connection up).
func (s *Supervisor) downLocked(err error, notify bool) {
	s.state = StateClosed

	// Cancel-and-replace: the single-pending-timer invariant.
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	if s.attempts >= s.cfg.MaxAttempts {
		s.failed = true
		s.state = StateFailed
		s.mu.Unlock()
		s.logger.Errorf("Live reconnect attempts exhausted (%d), giving up", s.cfg.MaxAttempts)
		if fn := s.Events.OnDisconnected; notify && fn != nil {
			s.emit(func() { fn(err) })
		}
		s.emit(s.Events.OnFailed)
		return
	}

	delay := backoffDelay(s.cfg.BaseDelay, s.cfg.CapDelay, s.attempts)
	s.attempts++
	attempt := s.attempts
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.timer = nil
		stale := s.shutdown || s.failed
		s.mu.Unlock()
		if stale {
			return
		}
		s.Connect()
	})
	s.mu.Unlock()

	s.logger.Infof("Reconnecting in %s (attempt %d/%d)", delay, attempt, s.cfg.MaxAttempts)
	if fn := s.Events.OnDisconnected; notify && fn != nil {
		s.emit(func() { fn(err) })
	}
	if fn := s.Events.OnReconnecting; fn != nil {
		s.emit(func() { fn(attempt, delay) })
	}
}

// emit invokes one lifecycle callback unless teardown has begun. Callbacks
// fire outside s.mu, so this re-check is what keeps them from landing after
// Shutdown.
func (s *Supervisor) emit(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	down := s.shutdown
	s.mu.Unlock()
	if down {
		return
	}
	fn()
}

// Shutdown closes the channel with a normal-closure code, cancels any
// pending reconnect timer, and discards the connection. No callbacks fire
// afterwards.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	s.gen++
	s.state = StateClosing
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	conn := s.conn
	s.conn = nil
	s.router.unbind()
	s.state = StateClosed
	s.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.logger.Infof("Live channel shut down")
}

// backoffDelay computes min(base << attempts, cap).
func backoffDelay(base, cap time.Duration, attempts int) time.Duration {
	if attempts > 30 {
		return cap
	}
	d := base << uint(attempts)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}
