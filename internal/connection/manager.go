package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"peerlink/internal/clock"
	"peerlink/internal/domain"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultBaseInterval    = time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultJitter          = 0.2
	DefaultSustainedPeriod = time.Minute
	DefaultQueueSize       = 256
)

// Config holds the reconnect and queueing policy.
type Config struct {
	BaseInterval    time.Duration
	MaxInterval     time.Duration
	Jitter          float64
	SustainedPeriod time.Duration

	// MaxAttempts and MaxDuration bound consecutive failed attempts since the
	// last successful connection. Zero means unlimited.
	MaxAttempts int
	MaxDuration time.Duration

	QueueSize   int
	MaxQueueAge time.Duration // zero keeps frames until delivered

	PingInterval time.Duration // zero disables pings
}

// Authenticator hands out bearer tokens for the upgrade.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// Handler receives every inbound frame on the reader goroutine. It may
// block to apply backpressure and must return once ctx is done.
type Handler func(ctx context.Context, frame []byte)

// Undelivered is a frame dropped from the outbound queue.
type Undelivered struct {
	ID         string
	Frame      []byte
	EnqueuedAt time.Time
	Err        error
}

// Options wires a Manager's collaborators.
type Options struct {
	Config  Config
	Dialer  Dialer
	Auth    Authenticator
	Handler Handler
	Clock   clock.Clock
	Rand    func() float64 // jitter source; nil uses math/rand/v2
	Logger  zerolog.Logger
}

// run is one supervisor lifetime, from Connect until it stops.
type run struct {
	cancel context.CancelFunc
	up     chan struct{} // closed on the first Connected
	upOnce sync.Once
	done   chan struct{}
	err    error // set before done is closed
}

// Manager is the ConnectionManager.
type Manager struct {
	cfg     Config
	dialer  Dialer
	auth    Authenticator
	handler Handler
	clock   clock.Clock
	log     zerolog.Logger
	backoff Backoff

	lifecycle sync.Mutex // serializes Connect, Disconnect and aborts

	mu      sync.Mutex
	state   State
	closed  bool
	run     *run
	lastErr error
	queue   *outQueue

	wake          chan struct{}
	transitions   chan Transition
	undeliverable chan Undelivered
}

// New returns a Disconnected manager.
func New(opts Options) *Manager {
	cfg := opts.Config
	if cfg.BaseInterval <= 0 {
		cfg.BaseInterval = DefaultBaseInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.MaxInterval < cfg.BaseInterval {
		cfg.MaxInterval = cfg.BaseInterval
	}
	if cfg.SustainedPeriod <= 0 {
		cfg.SustainedPeriod = DefaultSustainedPeriod
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Handler == nil {
		opts.Handler = func(context.Context, []byte) {}
	}
	return &Manager{
		cfg:     cfg,
		dialer:  opts.Dialer,
		auth:    opts.Auth,
		handler: opts.Handler,
		clock:   opts.Clock,
		log:     opts.Logger.With().Str("component", "connection").Logger(),
		backoff: Backoff{
			Base:   cfg.BaseInterval,
			Max:    cfg.MaxInterval,
			Jitter: cfg.Jitter,
			Rand:   opts.Rand,
		},
		state:         Disconnected,
		queue:         newOutQueue(cfg.QueueSize),
		wake:          make(chan struct{}, 1),
		transitions:   make(chan Transition, 256),
		undeliverable: make(chan Undelivered, cfg.QueueSize),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transitions publishes every state change. Changes are dropped when the
// buffer is full.
func (m *Manager) Transitions() <-chan Transition { return m.transitions }

// Undeliverable reports frames that expired in the queue or were still
// queued when the manager stopped.
func (m *Manager) Undeliverable() <-chan Undelivered { return m.undeliverable }

// Err returns the error that stopped the last supervisor, if it stopped on
// its own: a fatal or permanent failure, or retry exhaustion.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Done is closed when the current supervisor stops. With no supervisor it
// returns a closed channel.
func (m *Manager) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return m.run.done
}

// Pending returns the number of queued outbound frames.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// Connect starts the supervisor if needed and blocks until the first
// successful connection, a non-retryable error, retry exhaustion, or ctx ends. When
// ctx ends first the attempt is abandoned and the manager returns to
// Disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	r := m.start()
	select {
	case <-r.up:
		return nil
	case <-r.done:
		select {
		case <-r.up:
			return nil
		default:
		}
		return r.err
	case <-ctx.Done():
		select {
		case <-r.up:
			return nil
		default:
		}
		m.abort(r, ctx.Err())
		return ctx.Err()
	}
}

func (m *Manager) start() *run {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.run != nil {
		r := m.run
		m.mu.Unlock()
		return r
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, up: make(chan struct{}), done: make(chan struct{})}
	m.run = r
	m.closed = false
	m.lastErr = nil
	m.backoff.Reset()
	m.mu.Unlock()

	go m.supervise(ctx, r)
	return r
}

// Disconnect stops the supervisor and both loops, reports queued frames as
// undeliverable and enters Closed. No frame is written after it returns.
// It is idempotent; a later Connect starts over.
func (m *Manager) Disconnect() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.state == Closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	r := m.run
	m.mu.Unlock()

	if r != nil {
		r.cancel()
		<-r.done
		m.mu.Lock()
		m.run = nil
		m.mu.Unlock()
	}
	m.failQueued(domain.ErrClosed)
	m.setState(Closed, nil)
	m.log.Info().Msg("disconnected")
	return nil
}

func (m *Manager) abort(r *run, cause error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	current := m.run == r
	m.mu.Unlock()
	if !current {
		return
	}
	r.cancel()
	<-r.done
	m.mu.Lock()
	m.run = nil
	m.mu.Unlock()
	m.failQueued(cause)
	m.setState(Disconnected, cause)
}

// Enqueue queues frame for transmission. Frames are kept across outages.
func (m *Manager) Enqueue(ctx context.Context, id string, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.clock.Now()

	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return &domain.OpError{Op: "enqueue", MessageID: id, Err: domain.ErrClosed}
	case m.run == nil:
		m.mu.Unlock()
		return &domain.OpError{Op: "enqueue", MessageID: id, Err: domain.ErrNotConnected}
	}
	expired := m.queue.expire(now, m.cfg.MaxQueueAge)
	ok := m.queue.push(id, frame, now)
	m.mu.Unlock()

	m.report(expired, errExpired)
	if !ok {
		return &domain.OpError{Op: "enqueue", MessageID: id, Err: domain.ErrQueueFull}
	}
	m.signal()
	return nil
}

var errExpired = errors.New("exceeded maximum queue age")

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) supervise(ctx context.Context, r *run) {
	defer close(r.done)

	outageStart := m.clock.Now()
	failures := 0
	for {
		connected, up, err := m.session(ctx, r)
		if ctx.Err() != nil {
			r.err = domain.ErrClosed
			return
		}
		if connected {
			failures = 0
			outageStart = m.clock.Now()
			if up >= m.cfg.SustainedPeriod {
				m.backoff.Reset()
			}
		}
		// Rejected credentials and permanent failures such as a 404 on the
		// upgrade are not retried.
		if !domain.IsTransient(err) {
			m.stop(r, err)
			return
		}

		failures++
		if m.cfg.MaxAttempts > 0 && failures >= m.cfg.MaxAttempts {
			m.stop(r, fmt.Errorf("%w after %d attempts: %w", domain.ErrReconnectExhausted, failures, err))
			return
		}
		if m.cfg.MaxDuration > 0 && m.clock.Now().Sub(outageStart) >= m.cfg.MaxDuration {
			m.stop(r, fmt.Errorf("%w after %s: %w", domain.ErrReconnectExhausted, m.cfg.MaxDuration, err))
			return
		}

		delay := m.backoff.Next()
		m.setState(Reconnecting, err)
		m.log.Warn().Err(err).
			Int("attempt", failures).
			Dur("backoff", delay).
			Msg("connection lost, retrying")
		select {
		case <-ctx.Done():
			r.err = domain.ErrClosed
			return
		case <-m.clock.After(delay):
		}
		m.expireQueued()
	}
}

// stop ends a supervisor that failed on its own. The queue is drained and
// the state settled in the same critical section that releases m.run, so a
// Connect racing with it only ever sees the finished run or none.
func (m *Manager) stop(r *run, err error) {
	r.err = err
	m.mu.Lock()
	var items []queued
	if m.run == r {
		items = m.queue.drain()
		m.setStateLocked(Disconnected, err)
		m.run = nil
	}
	m.lastErr = err
	m.mu.Unlock()

	m.report(items, err)
	m.log.Error().Err(err).Msg("connection stopped")
}

// session runs one connect attempt and, if it succeeds, serves the
// connection until it fails. up is how long the connection was Connected.
func (m *Manager) session(ctx context.Context, r *run) (connected bool, up time.Duration, err error) {
	m.setState(Connecting, nil)
	conn, err := m.dial(ctx)
	if err != nil {
		return false, 0, err
	}

	m.setState(Connected, nil)
	since := m.clock.Now()
	r.upOnce.Do(func() { close(r.up) })
	m.log.Info().Msg("connected")

	err = m.serve(ctx, conn)
	return true, m.clock.Now().Sub(since), err
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	for retried := false; ; retried = true {
		token, err := m.auth.Token(ctx)
		if err != nil {
			return nil, err
		}
		m.setState(Authenticating, nil)
		conn, err := m.dialer.Dial(ctx, token)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, domain.ErrUnauthorized) || retried {
			return nil, err
		}
		m.log.Warn().Err(err).Msg("upgrade rejected, logging in again")
		m.auth.Invalidate()
		m.setState(Connecting, nil)
	}
}

func (m *Manager) serve(ctx context.Context, conn Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- m.readLoop(ctx, conn) }()
	go func() { errc <- m.writeLoop(ctx, conn) }()

	err := <-errc
	cancel()
	_ = conn.Close()
	<-errc
	return err
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) error {
	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return domain.Transient(fmt.Errorf("read: %w", err))
		}
		m.handler(ctx, frame)
	}
}

func (m *Manager) writeLoop(ctx context.Context, conn Conn) error {
	var ping <-chan time.Time
	if m.cfg.PingInterval > 0 {
		t := m.clock.NewTicker(m.cfg.PingInterval)
		defer t.Stop()
		ping = t.C
	}
	for {
		if err := m.flush(ctx, conn); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.wake:
		case <-ping:
			if err := conn.Ping(); err != nil {
				return domain.Transient(fmt.Errorf("ping: %w", err))
			}
		}
	}
}

// flush writes queued frames in order. A frame leaves the queue only after
// its write succeeded, so a failed write is retried on the next connection.
func (m *Manager) flush(ctx context.Context, conn Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.expireQueued()

		m.mu.Lock()
		item, ok := m.queue.take()
		m.mu.Unlock()
		if !ok {
			return nil
		}
		if err := conn.WriteMessage(item.frame); err != nil {
			m.mu.Lock()
			m.queue.release()
			m.mu.Unlock()
			return domain.Transient(fmt.Errorf("write id=%s: %w", item.id, err))
		}
		m.mu.Lock()
		m.queue.ack(item.seq)
		m.mu.Unlock()
		m.log.Debug().Str("message_id", item.id).Msg("frame sent")
	}
}

func (m *Manager) expireQueued() {
	m.mu.Lock()
	expired := m.queue.expire(m.clock.Now(), m.cfg.MaxQueueAge)
	m.mu.Unlock()
	m.report(expired, errExpired)
}

func (m *Manager) failQueued(cause error) {
	m.mu.Lock()
	items := m.queue.drain()
	m.mu.Unlock()
	m.report(items, cause)
}

func (m *Manager) report(items []queued, cause error) {
	for _, it := range items {
		u := Undelivered{
			ID:         it.id,
			Frame:      it.frame,
			EnqueuedAt: it.at,
			Err: &domain.OpError{
				Op:        "send",
				MessageID: it.id,
				Err:       fmt.Errorf("%w: %w", domain.ErrUndeliverable, cause),
			},
		}
		select {
		case m.undeliverable <- u:
		default:
			m.log.Error().Str("message_id", it.id).Err(cause).Msg("undeliverable report dropped")
		}
		m.log.Warn().Str("message_id", it.id).Err(cause).Msg("message undeliverable")
	}
}

func (m *Manager) setState(to State, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setStateLocked(to, cause)
}

// setStateLocked applies and publishes a transition. Publishing under m.mu
// keeps Transitions in the order the state actually changed.
func (m *Manager) setStateLocked(to State, cause error) {
	from := m.state
	if from == to {
		return
	}
	if !CanTransition(from, to) {
		m.log.Error().Stringer("from", from).Stringer("to", to).Msg("illegal state transition")
		return
	}
	m.state = to
	select {
	case m.transitions <- Transition{From: from, To: to, At: m.clock.Now(), Err: cause}:
	default:
	}
	ev := m.log.Debug()
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Str("state", to.String()).Stringer("from", from).Msg("state change")
}

var _ domain.Outbound = (*Manager)(nil)
