package hub

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"peerlink/internal/clock"
	"peerlink/internal/crypto"
	"peerlink/internal/domain"
)

// Defaults for zero Options fields.
const (
	DefaultTokenTTL     = time.Hour
	DefaultChallengeTTL = 2 * time.Minute
	maxBodyBytes        = 64 << 10
)

// Options configures a Server.
type Options struct {
	TokenTTL     time.Duration
	ChallengeTTL time.Duration
	Clock        clock.Clock
	Logger       zerolog.Logger
}

type account struct {
	keys         domain.PeerPublicKey
	descriptions json.RawMessage
	registeredAt time.Time
}

type challenge struct {
	nonce   string
	expires time.Time
}

type grant struct {
	user    domain.Username
	expires time.Time
}

// Server holds every registered user, live token and websocket session.
type Server struct {
	tokenTTL     time.Duration
	challengeTTL time.Duration
	clock        clock.Clock
	log          zerolog.Logger
	upgrader     websocket.Upgrader
	mux          *http.ServeMux

	mu         sync.Mutex
	accounts   map[domain.Username]*account
	challenges map[domain.Username]challenge
	tokens     map[string]grant
	peers      map[domain.Username]*peer
}

// New returns an empty Server.
func New(opts Options) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = DefaultChallengeTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	s := &Server{
		tokenTTL:     opts.TokenTTL,
		challengeTTL: opts.ChallengeTTL,
		clock:        opts.Clock,
		log:          opts.Logger.With().Str("component", "hub").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Agents are not browsers; the bearer token is the only credential.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux:        http.NewServeMux(),
		accounts:   make(map[domain.Username]*account),
		challenges: make(map[domain.Username]challenge),
		tokens:     make(map[string]grant),
		peers:      make(map[domain.Username]*peer),
	}
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("POST /login/challenge", s.handleChallenge)
	s.mux.HandleFunc("POST /login/verify", s.handleVerify)
	s.mux.HandleFunc("GET /users/active", s.authed(s.handleActive))
	s.mux.HandleFunc("GET /users/{id}/key", s.authed(s.handleKey))
	s.mux.HandleFunc("GET /users/{id}/descriptions", s.authed(s.handleGetDescriptions))
	s.mux.HandleFunc("PUT /users/{id}/descriptions", s.authed(s.handlePutDescriptions))
	s.mux.HandleFunc("GET /ws", s.authed(s.handleWebsocket))
	return s
}

// Handler returns the HTTP handler with access logging.
func (s *Server) Handler() http.Handler { return s.accessLog(s.mux) }

type registerRequest struct {
	Username   domain.Username      `json:"username"`
	PublicKey  domain.X25519Public  `json:"public_key"`
	SigningKey domain.Ed25519Public `json:"signing_key"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Username.IsBroadcast() || strings.ContainsAny(req.Username.String(), "/ ") {
		http.Error(w, "invalid username", http.StatusBadRequest)
		return
	}
	if req.PublicKey.IsZero() || req.SigningKey.IsZero() {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[req.Username]; ok {
		http.Error(w, "username already registered", http.StatusConflict)
		return
	}
	s.accounts[req.Username] = &account{
		keys: domain.PeerPublicKey{
			Username:   req.Username,
			PublicKey:  req.PublicKey,
			SigningKey: req.SigningKey,
		},
		registeredAt: s.clock.Now(),
	}
	s.log.Info().Str("user", req.Username.String()).Msg("registered")
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": req.Username.String()})
}

type challengeRequest struct {
	UserID domain.Username `json:"user_id"`
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if !decode(w, r, &req) {
		return
	}
	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		http.Error(w, "nonce generation failed", http.StatusInternalServerError)
		return
	}
	nonce := crypto.B64(raw[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[req.UserID]; !ok {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	s.challenges[req.UserID] = challenge{nonce: nonce, expires: s.clock.Now().Add(s.challengeTTL)}
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

type verifyRequest struct {
	UserID    domain.Username `json:"user_id"`
	Nonce     string          `json:"nonce"`
	Signature []byte          `json:"signature"`
}

type verifyResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	ch, ok := s.challenges[req.UserID]
	delete(s.challenges, req.UserID) // single use
	acct, known := s.accounts[req.UserID]
	switch {
	case !ok || !known:
		http.Error(w, "no pending challenge", http.StatusUnauthorized)
		return
	case now.After(ch.expires) || ch.nonce != req.Nonce:
		http.Error(w, "challenge expired or mismatched", http.StatusUnauthorized)
		return
	case !crypto.VerifyEd25519(acct.keys.SigningKey, []byte(req.Nonce), req.Signature):
		s.log.Warn().Str("user", req.UserID.String()).Msg("bad login signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	token := uuid.NewString()
	expires := now.Add(s.tokenTTL)
	s.tokens[token] = grant{user: req.UserID, expires: expires}
	s.log.Info().Str("user", req.UserID.String()).Time("expires_at", expires).Msg("login")
	writeJSON(w, http.StatusOK, verifyResponse{Token: token, ExpiresAt: expires.Unix()})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user domain.Username)

// authed resolves the bearer token to a user or answers 401.
func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		s.mu.Lock()
		g, ok := s.tokens[token]
		if ok && s.clock.Now().After(g.expires) {
			delete(s.tokens, token)
			ok = false
		}
		s.mu.Unlock()
		if !ok {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		h(w, r, g.user)
	}
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request, _ domain.Username) {
	id := domain.Username(r.PathValue("id"))
	s.mu.Lock()
	acct, ok := s.accounts[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, acct.keys)
}

func (s *Server) handleActive(w http.ResponseWriter, _ *http.Request, _ domain.Username) {
	writeJSON(w, http.StatusOK, s.Presence())
}

// Presence lists registered users split by whether they hold a live
// websocket session.
func (s *Server) Presence() domain.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := domain.Presence{Online: []domain.Username{}, Offline: []domain.Username{}}
	for u := range s.accounts {
		if _, ok := s.peers[u]; ok {
			p.Online = append(p.Online, u)
		} else {
			p.Offline = append(p.Offline, u)
		}
	}
	sort.Slice(p.Online, func(i, j int) bool { return p.Online[i] < p.Online[j] })
	sort.Slice(p.Offline, func(i, j int) bool { return p.Offline[i] < p.Offline[j] })
	return p
}

func (s *Server) handleGetDescriptions(w http.ResponseWriter, r *http.Request, _ domain.Username) {
	id := domain.Username(r.PathValue("id"))
	s.mu.Lock()
	acct, ok := s.accounts[id]
	var blob json.RawMessage
	if ok {
		blob = acct.descriptions
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	if len(blob) == 0 {
		blob = json.RawMessage(`{}`)
	}
	writeJSON(w, http.StatusOK, blob)
}

func (s *Server) handlePutDescriptions(w http.ResponseWriter, r *http.Request, user domain.Username) {
	id := domain.Username(r.PathValue("id"))
	if id != user {
		http.Error(w, "cannot write another user's descriptions", http.StatusForbidden)
		return
	}
	var blob json.RawMessage
	if !decode(w, r, &blob) {
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[id]
	if ok {
		acct.descriptions = blob
	}
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown user", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Kick closes user's websocket session, if any.
func (s *Server) Kick(user domain.Username) bool {
	s.mu.Lock()
	p, ok := s.peers[user]
	s.mu.Unlock()
	if ok {
		p.close()
	}
	return ok
}

// RevokeTokens drops every token issued to user.
func (s *Server) RevokeTokens(user domain.Username) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, g := range s.tokens {
		if g.user == user {
			delete(s.tokens, t)
		}
	}
}

// Close drops every websocket session.
func (s *Server) Close() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
