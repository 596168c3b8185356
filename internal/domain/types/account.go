package types

// AccountProfile records that a username was registered on a specific server.
type AccountProfile struct {
	ServerURL    string   `json:"server_url"`
	Username     Username `json:"username"`
	RegisteredAt int64    `json:"registered_at"`
}
