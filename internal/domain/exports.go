package domain

import (
	interfaces "peerlink/internal/domain/interfaces"
	types "peerlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username       = types.Username
	Fingerprint    = types.Fingerprint
	Identity       = types.Identity
	PeerPublicKey  = types.PeerPublicKey
	Presence       = types.Presence
	Message        = types.Message
	MessageStatus  = types.MessageStatus
	Session        = types.Session
	AccountProfile = types.AccountProfile
	X25519Public   = types.X25519Public
	X25519Private  = types.X25519Private
	Ed25519Public  = types.Ed25519Public
	Ed25519Private = types.Ed25519Private
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService = interfaces.IdentityService
	Signer          = interfaces.Signer
	TokenSource     = interfaces.TokenSource
	KeyResolver     = interfaces.KeyResolver
	Outbound        = interfaces.Outbound
	RelayClient     = interfaces.RelayClient
	IdentityStore   = interfaces.IdentityStore
	AccountStore    = interfaces.AccountStore
	SessionStore    = interfaces.SessionStore
)

// Broadcast is the reserved recipient addressing every connected peer.
const Broadcast = types.Broadcast

// Message status annotations.
const (
	StatusVerified         = types.StatusVerified
	StatusUnsigned         = types.StatusUnsigned
	StatusDecryptionFailed = types.StatusDecryptionFailed
)
