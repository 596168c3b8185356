package interfaces

import (
	"context"
	"encoding/json"

	domaintypes "peerlink/internal/domain/types"
)

// RelayClient is how we talk to the coordinating server's HTTP API.
//
// Calls that take a token send it as a bearer credential; an empty token sends none.
type RelayClient interface {
	Register(ctx context.Context, keys domaintypes.PeerPublicKey) error
	Challenge(ctx context.Context, username domaintypes.Username) (nonce string, err error)
	VerifyChallenge(
		ctx context.Context,
		username domaintypes.Username,
		nonce string,
		signature []byte,
	) (domaintypes.Session, error)

	FetchPeerKey(
		ctx context.Context,
		token string,
		username domaintypes.Username,
	) (domaintypes.PeerPublicKey, error)
	ActiveUsers(ctx context.Context, token string) (domaintypes.Presence, error)
	Descriptions(
		ctx context.Context,
		token string,
		username domaintypes.Username,
	) (json.RawMessage, error)
	PutDescriptions(
		ctx context.Context,
		token string,
		username domaintypes.Username,
		blob json.RawMessage,
	) error
}
