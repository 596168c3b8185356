package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"peerlink/internal/domain"
)

// ErrInvalidDescriptions is returned when a descriptions blob is not JSON.
var ErrInvalidDescriptions = errors.New("descriptions must be valid JSON")

// Service is a thin authenticated wrapper over the presence endpoints.
type Service struct {
	relay  domain.RelayClient
	tokens domain.TokenSource
	log    zerolog.Logger
}

// New returns a Service that authenticates with tokens.
func New(relay domain.RelayClient, tokens domain.TokenSource, logger zerolog.Logger) *Service {
	return &Service{
		relay:  relay,
		tokens: tokens,
		log:    logger.With().Str("component", "presence").Logger(),
	}
}

// Active returns the online and offline peers, each list sorted.
func (s *Service) Active(ctx context.Context) (domain.Presence, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return domain.Presence{}, &domain.OpError{Op: "presence", Err: err}
	}
	p, err := s.relay.ActiveUsers(ctx, token)
	if err != nil {
		return domain.Presence{}, &domain.OpError{Op: "presence", Err: err}
	}
	sortUsers(p.Online)
	sortUsers(p.Offline)
	s.log.Debug().Int("online", len(p.Online)).Int("offline", len(p.Offline)).Msg("presence")
	return p, nil
}

// Descriptions returns peer's descriptions blob verbatim.
func (s *Service) Descriptions(ctx context.Context, peer domain.Username) (json.RawMessage, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, &domain.OpError{Op: "descriptions", Peer: peer, Err: err}
	}
	blob, err := s.relay.Descriptions(ctx, token, peer)
	if err != nil {
		return nil, &domain.OpError{Op: "descriptions", Peer: peer, Err: err}
	}
	return blob, nil
}

// PutDescriptions replaces peer's descriptions blob. The server only
// accepts writes to the caller's own entry.
func (s *Service) PutDescriptions(ctx context.Context, peer domain.Username, blob json.RawMessage) error {
	if !json.Valid(blob) {
		return fmt.Errorf("put descriptions %s: %w", peer, ErrInvalidDescriptions)
	}
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return &domain.OpError{Op: "put descriptions", Peer: peer, Err: err}
	}
	if err := s.relay.PutDescriptions(ctx, token, peer, blob); err != nil {
		return &domain.OpError{Op: "put descriptions", Peer: peer, Err: err}
	}
	s.log.Info().Str("peer", peer.String()).Int("bytes", len(blob)).Msg("descriptions updated")
	return nil
}

func sortUsers(us []domain.Username) {
	sort.Slice(us, func(i, j int) bool { return us[i] < us[j] })
}
