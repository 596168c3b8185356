package auth

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

// State is the login state of a Service.
type State int

const (
	LoggedOut State = iota
	Registered
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Registered:
		return "registered"
	case LoggedIn:
		return "logged_in"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultRefreshSkew is how long before expiry a token is replaced.
const DefaultRefreshSkew = time.Minute

// Signer is the subset of the identity the login flow needs.
type Signer interface {
	Sign(payload []byte) []byte
	PublicKeys(username domain.Username) domain.PeerPublicKey
}

// Options configures a Service.
type Options struct {
	Relay       domain.RelayClient
	Signer      Signer
	Clock       clock.Clock
	RefreshSkew time.Duration
	// Sessions, if set, caches issued tokens across processes.
	Sessions domain.SessionStore
	Logger   zerolog.Logger
}

// Service owns the Session for one local agent.
type Service struct {
	relay    domain.RelayClient
	signer   Signer
	clock    clock.Clock
	skew     time.Duration
	sessions domain.SessionStore
	log      zerolog.Logger

	mu       sync.Mutex // serializes login round trips
	state    State
	username domain.Username
	session  domain.Session
	restored bool
}

// New returns a logged-out Service.
func New(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.RefreshSkew <= 0 {
		opts.RefreshSkew = DefaultRefreshSkew
	}
	return &Service{
		relay:    opts.Relay,
		signer:   opts.Signer,
		clock:    opts.Clock,
		skew:     opts.RefreshSkew,
		sessions: opts.Sessions,
		log:      opts.Logger.With().Str("component", "auth").Logger(),
	}
}

// Register publishes the local public keys under username. A name collision
// returns domain.ErrUsernameTaken and is never retried.
func (s *Service) Register(ctx context.Context, username domain.Username) error {
	if username == "" || username.IsBroadcast() {
		return fmt.Errorf("register: invalid username %q", username)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.relay.Register(ctx, s.signer.PublicKeys(username)); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			s.log.Error().Str("username", username.String()).Msg("username already registered")
		}
		return &domain.OpError{Op: "register", Peer: username, Err: err}
	}
	s.username = username
	s.session = domain.Session{}
	s.restored = false
	s.state = Registered
	s.log.Info().Str("username", username.String()).Msg("registered")
	return nil
}

// SetUsername marks a previously registered username as ours without a
// server round trip. It drops any session held for a different name.
func (s *Service) SetUsername(username domain.Username) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.username != username {
		s.session = domain.Session{}
		s.restored = false
	}
	s.username = username
	if s.state == LoggedOut || s.session.Token == "" {
		s.state = Registered
	}
}

// Login runs the challenge-response flow and stores the issued token.
func (s *Service) Login(ctx context.Context) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginLocked(ctx)
}

func (s *Service) loginLocked(ctx context.Context) (domain.Session, error) {
	if s.state == LoggedOut || s.username == "" {
		return domain.Session{}, &domain.OpError{Op: "login", Err: domain.ErrNotLoggedIn}
	}
	username := s.username

	nonce, err := s.relay.Challenge(ctx, username)
	if err != nil {
		return domain.Session{}, s.loginFailed("challenge", username, err)
	}
	sig := s.signer.Sign([]byte(nonce))
	sess, err := s.relay.VerifyChallenge(ctx, username, nonce, sig)
	if err != nil {
		return domain.Session{}, s.loginFailed("verify", username, err)
	}

	s.session = sess
	s.state = LoggedIn
	s.restored = true
	if s.sessions != nil {
		if err := s.sessions.SaveSession(sess); err != nil {
			s.log.Warn().Err(err).Msg("cache session")
		}
	}
	ev := s.log.Info().Str("username", username.String())
	if !sess.ExpiresAt.IsZero() {
		ev = ev.Time("expires_at", sess.ExpiresAt)
	}
	ev.Msg("logged in")
	return sess, nil
}

func (s *Service) loginFailed(step string, username domain.Username, err error) error {
	if domain.IsFatal(err) {
		// A rejected signature means a corrupted key or a server mismatch.
		s.session = domain.Session{}
		s.state = Registered
		s.log.Error().Err(err).Str("step", step).Msg("login rejected")
	} else {
		s.log.Warn().Err(err).Str("step", step).Msg("login failed")
	}
	return &domain.OpError{Op: "login " + step, Peer: username, Err: err}
}

// Token returns a bearer token valid for at least the refresh skew, logging
// in again first when needed.
func (s *Service) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restoreLocked()
	if s.session.Valid(s.clock.Now(), s.skew) {
		return s.session.Token, nil
	}
	if s.session.Token != "" {
		s.log.Debug().Time("expires_at", s.session.ExpiresAt).Msg("refreshing token before expiry")
	}
	sess, err := s.loginLocked(ctx)
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// restoreLocked adopts a still-valid cached session once per username.
func (s *Service) restoreLocked() {
	if s.restored || s.sessions == nil || s.username == "" || s.session.Token != "" {
		return
	}
	s.restored = true
	sess, ok, err := s.sessions.LoadSession(s.username)
	if err != nil {
		s.log.Warn().Err(err).Msg("load cached session")
		return
	}
	if !ok || sess.Username != s.username || !sess.Valid(s.clock.Now(), s.skew) {
		return
	}
	s.session = sess
	s.state = LoggedIn
	s.log.Debug().Time("expires_at", sess.ExpiresAt).Msg("reusing cached session")
}

// Invalidate drops the cached token so the next Token call logs in again.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Token != "" {
		s.log.Info().Msg("session invalidated")
	}
	if s.sessions != nil && s.username != "" {
		if err := s.sessions.DeleteSession(s.username); err != nil {
			s.log.Warn().Err(err).Msg("drop cached session")
		}
	}
	s.restored = true
	s.session = domain.Session{}
	if s.state == LoggedIn {
		s.state = Registered
	}
}

// Logout clears the session.
func (s *Service) Logout() { s.Invalidate() }

// Session returns a copy of the current session.
func (s *Service) Session() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// State returns the current login state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username returns the registered username, if any.
func (s *Service) Username() domain.Username {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

var _ domain.TokenSource = (*Service)(nil)
