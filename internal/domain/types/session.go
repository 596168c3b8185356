package types

import "time"

// Session holds the bearer token obtained by a successful login.
type Session struct {
	Username  Username  `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the session has a token that stays usable for at least
// skew past now. A zero ExpiresAt never expires.
func (s Session) Valid(now time.Time, skew time.Duration) bool {
	if s.Token == "" {
		return false
	}
	if s.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(skew).Before(s.ExpiresAt)
}
