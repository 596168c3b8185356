package app

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"peerlink/internal/domain"
	"peerlink/internal/services/identity"
	"peerlink/internal/store"
)

// Wire bundles the on-disk stores and identity service for the CLI and
// builds Clients from them.
type Wire struct {
	Config   Config
	Identity *identity.Service
	Keystore *store.IdentityFileStore
	Accounts *store.AccountFileStore
	Sessions *store.SessionFileStore
	Logger   zerolog.Logger
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config, logger zerolog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keystore := store.NewIdentityFileStore(cfg.Home)
	return &Wire{
		Config:   cfg,
		Identity: identity.New(keystore),
		Keystore: keystore,
		Accounts: store.NewAccountFileStore(cfg.Home),
		Sessions: store.NewSessionFileStore(cfg.Home, cfg.ServerURL),
		Logger:   logger,
	}, nil
}

// Client unlocks the identity with passphrase and returns a Client acting
// as the configured username. Without one, the only account registered on
// the server is used.
func (w *Wire) Client(passphrase string) (*Client, error) {
	id, err := w.Identity.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	cfg := w.Config
	if cfg.Username == "" {
		u, err := w.defaultUsername()
		if err != nil {
			return nil, err
		}
		cfg.Username = u.String()
	}
	return NewClient(ClientOptions{Config: cfg, Identity: id, Sessions: w.Sessions, Logger: w.Logger})
}

func (w *Wire) defaultUsername() (domain.Username, error) {
	profiles, err := w.Accounts.ListAccountProfiles(w.Config.ServerURL)
	if err != nil {
		return "", err
	}
	switch len(profiles) {
	case 0:
		return "", nil
	case 1:
		return profiles[0].Username, nil
	}
	return "", fmt.Errorf("%d accounts registered on %s; pick one with --user", len(profiles), w.Config.ServerURL)
}

// RememberAccount records that username is registered on the configured
// server.
func (w *Wire) RememberAccount(username domain.Username) error {
	return w.Accounts.SaveAccountProfile(domain.AccountProfile{
		ServerURL:    w.Config.ServerURL,
		Username:     username,
		RegisteredAt: time.Now().Unix(),
	})
}
