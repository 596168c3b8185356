package interfaces

import domaintypes "peerlink/internal/domain/types"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity) error
	LoadIdentity(passphrase string) (domaintypes.Identity, error)
}

// AccountStore persists per-server account profiles.
type AccountStore interface {
	SaveAccountProfile(profile domaintypes.AccountProfile) error
	LoadAccountProfile(
		serverURL string,
		username domaintypes.Username,
	) (domaintypes.AccountProfile, bool, error)
	ListAccountProfiles(serverURL string) ([]domaintypes.AccountProfile, error)
}

// SessionStore caches bearer sessions issued by one server.
type SessionStore interface {
	SaveSession(session domaintypes.Session) error
	LoadSession(username domaintypes.Username) (domaintypes.Session, bool, error)
	DeleteSession(username domaintypes.Username) error
}
