package presence_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"peerlink/internal/domain"
	"peerlink/internal/services/presence"
)

type tokens struct{ err error }

func (t tokens) Token(context.Context) (string, error) { return "tok", t.err }

type fakeRelay struct {
	presence domain.Presence
	blobs    map[domain.Username]json.RawMessage
	gotToken string
}

func (f *fakeRelay) ActiveUsers(_ context.Context, token string) (domain.Presence, error) {
	f.gotToken = token
	return f.presence, nil
}

func (f *fakeRelay) Descriptions(_ context.Context, token string, u domain.Username) (json.RawMessage, error) {
	f.gotToken = token
	b, ok := f.blobs[u]
	if !ok {
		return nil, domain.ErrPeerNotFound
	}
	return b, nil
}

func (f *fakeRelay) PutDescriptions(_ context.Context, token string, u domain.Username, b json.RawMessage) error {
	f.gotToken = token
	f.blobs[u] = b
	return nil
}

func (f *fakeRelay) Register(context.Context, domain.PeerPublicKey) error { return nil }
func (f *fakeRelay) Challenge(context.Context, domain.Username) (string, error) {
	return "", nil
}
func (f *fakeRelay) VerifyChallenge(context.Context, domain.Username, string, []byte) (domain.Session, error) {
	return domain.Session{}, nil
}
func (f *fakeRelay) FetchPeerKey(context.Context, string, domain.Username) (domain.PeerPublicKey, error) {
	return domain.PeerPublicKey{}, nil
}

func TestActive_SortsAndAuthenticates(t *testing.T) {
	relay := &fakeRelay{presence: domain.Presence{
		Online:  []domain.Username{"carol", "alice"},
		Offline: []domain.Username{"zed", "bob"},
	}}
	svc := presence.New(relay, tokens{}, zerolog.Nop())

	p, err := svc.Active(context.Background())
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if relay.gotToken != "tok" {
		t.Fatalf("token not forwarded: %q", relay.gotToken)
	}
	if p.Online[0] != "alice" || p.Offline[0] != "bob" {
		t.Fatalf("lists not sorted: %+v", p)
	}
	if !p.IsOnline("carol") || p.IsOnline("bob") {
		t.Fatal("IsOnline mismatch")
	}
}

func TestActive_TokenFailure(t *testing.T) {
	svc := presence.New(&fakeRelay{}, tokens{err: domain.ErrNotLoggedIn}, zerolog.Nop())
	if _, err := svc.Active(context.Background()); !errors.Is(err, domain.ErrNotLoggedIn) {
		t.Fatalf("want ErrNotLoggedIn, got %v", err)
	}
}

func TestDescriptions_RoundTrip(t *testing.T) {
	relay := &fakeRelay{blobs: map[domain.Username]json.RawMessage{}}
	svc := presence.New(relay, tokens{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Descriptions(ctx, "alice"); !errors.Is(err, domain.ErrPeerNotFound) {
		t.Fatalf("want ErrPeerNotFound, got %v", err)
	}
	blob := json.RawMessage(`{"skills":["search"]}`)
	if err := svc.PutDescriptions(ctx, "alice", blob); err != nil {
		t.Fatalf("PutDescriptions: %v", err)
	}
	got, err := svc.Descriptions(ctx, "alice")
	if err != nil {
		t.Fatalf("Descriptions: %v", err)
	}
	if string(got) != string(blob) {
		t.Fatalf("got %s", got)
	}
}

func TestPutDescriptions_RejectsInvalidJSON(t *testing.T) {
	relay := &fakeRelay{blobs: map[domain.Username]json.RawMessage{}}
	svc := presence.New(relay, tokens{}, zerolog.Nop())
	err := svc.PutDescriptions(context.Background(), "alice", json.RawMessage(`{not json`))
	if !errors.Is(err, presence.ErrInvalidDescriptions) {
		t.Fatalf("want ErrInvalidDescriptions, got %v", err)
	}
	if relay.gotToken != "" {
		t.Fatal("invalid blob reached the server")
	}
}
