package keydir

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"peerlink/internal/clock"
	"peerlink/internal/domain"
)

// DefaultNegativeTTL bounds how long a not-found answer is cached.
const DefaultNegativeTTL = 30 * time.Second

// ErrInvalidKey is returned when the server hands back an unusable key entry.
var ErrInvalidKey = errors.New("invalid peer key")

// Options configures a Directory.
type Options struct {
	Relay       domain.RelayClient
	Tokens      domain.TokenSource
	Clock       clock.Clock
	NegativeTTL time.Duration
	Logger      zerolog.Logger
}

// Directory maps usernames to their published keys.
type Directory struct {
	relay  domain.RelayClient
	tokens domain.TokenSource
	clock  clock.Clock
	negTTL time.Duration
	log    zerolog.Logger

	// Resolve and Refresh flights are keyed by username in separate groups.
	resolving  singleflight.Group
	refreshing singleflight.Group

	mu       sync.RWMutex
	keys     map[domain.Username]domain.PeerPublicKey
	notFound map[domain.Username]time.Time // expiry of the negative entry
}

// New returns an empty Directory.
func New(opts Options) *Directory {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = DefaultNegativeTTL
	}
	return &Directory{
		relay:    opts.Relay,
		tokens:   opts.Tokens,
		clock:    opts.Clock,
		negTTL:   opts.NegativeTTL,
		log:      opts.Logger.With().Str("component", "keydir").Logger(),
		keys:     make(map[domain.Username]domain.PeerPublicKey),
		notFound: make(map[domain.Username]time.Time),
	}
}

// Resolve returns the cached key for peer, fetching it on a miss.
func (d *Directory) Resolve(ctx context.Context, peer domain.Username) (domain.PeerPublicKey, error) {
	if peer == "" || peer.IsBroadcast() {
		return domain.PeerPublicKey{}, fmt.Errorf("resolve %q: %w", peer, domain.ErrPeerNotFound)
	}
	if k, ok, err := d.lookup(peer); ok || err != nil {
		return k, err
	}

	ch := d.resolving.DoChan(peer.String(), func() (any, error) {
		// Another flight may have filled the cache between lookup and DoChan.
		if k, ok, err := d.lookup(peer); ok || err != nil {
			return k, err
		}
		return d.fetch(context.WithoutCancel(ctx), peer)
	})
	select {
	case <-ctx.Done():
		return domain.PeerPublicKey{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.PeerPublicKey{}, res.Err
		}
		return res.Val.(domain.PeerPublicKey), nil
	}
}

// Refresh fetches peer's key unconditionally. The cached entry is replaced
// only when the fetch succeeds.
func (d *Directory) Refresh(ctx context.Context, peer domain.Username) (domain.PeerPublicKey, error) {
	ch := d.refreshing.DoChan(peer.String(), func() (any, error) {
		return d.fetch(context.WithoutCancel(ctx), peer)
	})
	select {
	case <-ctx.Done():
		return domain.PeerPublicKey{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.PeerPublicKey{}, res.Err
		}
		return res.Val.(domain.PeerPublicKey), nil
	}
}

// Invalidate forgets anything cached for peer.
func (d *Directory) Invalidate(peer domain.Username) {
	d.mu.Lock()
	delete(d.keys, peer)
	delete(d.notFound, peer)
	d.mu.Unlock()
}

// Len returns the number of cached keys.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.keys)
}

func (d *Directory) lookup(peer domain.Username) (domain.PeerPublicKey, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if k, ok := d.keys[peer]; ok {
		return k, true, nil
	}
	if until, ok := d.notFound[peer]; ok && d.clock.Now().Before(until) {
		return domain.PeerPublicKey{}, false, fmt.Errorf("resolve %s: %w", peer, domain.ErrPeerNotFound)
	}
	return domain.PeerPublicKey{}, false, nil
}

func (d *Directory) fetch(ctx context.Context, peer domain.Username) (domain.PeerPublicKey, error) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return domain.PeerPublicKey{}, err
	}
	k, err := d.relay.FetchPeerKey(ctx, token, peer)
	if err != nil {
		if errors.Is(err, domain.ErrPeerNotFound) {
			d.mu.Lock()
			d.notFound[peer] = d.clock.Now().Add(d.negTTL)
			d.mu.Unlock()
			d.log.Debug().Str("peer", peer.String()).Msg("peer not found")
		} else {
			d.log.Warn().Err(err).Str("peer", peer.String()).Msg("key fetch failed")
		}
		return domain.PeerPublicKey{}, fmt.Errorf("resolve %s: %w", peer, err)
	}
	if err := validate(peer, k); err != nil {
		return domain.PeerPublicKey{}, err
	}

	d.mu.Lock()
	d.keys[peer] = k
	delete(d.notFound, peer)
	d.mu.Unlock()
	d.log.Debug().Str("peer", peer.String()).Msg("cached peer key")
	return k, nil
}

func validate(peer domain.Username, k domain.PeerPublicKey) error {
	if k.Username != peer {
		return fmt.Errorf("%w: entry for %q returned for %q", ErrInvalidKey, k.Username, peer)
	}
	if k.PublicKey.IsZero() || k.SigningKey.IsZero() {
		return fmt.Errorf("%w: %s has an empty key", ErrInvalidKey, peer)
	}
	return nil
}

var _ domain.KeyResolver = (*Directory)(nil)
