package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"peerlink/internal/domain"
)

const maxErrorBody = 512

// HTTP talks to the coordinating server's REST endpoints.
type HTTP struct {
	Base string
	HTTP *http.Client
}

// NewHTTP returns a client for base. A nil httpClient uses http.DefaultClient.
func NewHTTP(base string, httpClient *http.Client) *HTTP {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTP{Base: strings.TrimRight(base, "/"), HTTP: httpClient}
}

type registerRequest struct {
	Username   domain.Username      `json:"username"`
	PublicKey  domain.X25519Public  `json:"public_key"`
	SigningKey domain.Ed25519Public `json:"signing_key"`
}

type challengeRequest struct {
	UserID domain.Username `json:"user_id"`
}

type challengeResponse struct {
	Nonce string `json:"nonce"`
}

type verifyRequest struct {
	UserID    domain.Username `json:"user_id"`
	Nonce     string          `json:"nonce"`
	Signature []byte          `json:"signature"`
}

type verifyResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds; 0 means no expiry
}

// Register publishes keys under keys.Username.
func (c *HTTP) Register(ctx context.Context, keys domain.PeerPublicKey) error {
	return c.do(ctx, http.MethodPost, "/register", "", registerRequest{
		Username:   keys.Username,
		PublicKey:  keys.PublicKey,
		SigningKey: keys.SigningKey,
	}, nil)
}

// Challenge requests a login nonce for username.
func (c *HTTP) Challenge(ctx context.Context, username domain.Username) (string, error) {
	var out challengeResponse
	if err := c.do(ctx, http.MethodPost, "/login/challenge", "", challengeRequest{UserID: username}, &out); err != nil {
		return "", err
	}
	if out.Nonce == "" {
		return "", fmt.Errorf("relay: empty login nonce")
	}
	return out.Nonce, nil
}

// VerifyChallenge submits the signed nonce and returns the issued session.
func (c *HTTP) VerifyChallenge(
	ctx context.Context,
	username domain.Username,
	nonce string,
	signature []byte,
) (domain.Session, error) {
	var out verifyResponse
	req := verifyRequest{UserID: username, Nonce: nonce, Signature: signature}
	if err := c.do(ctx, http.MethodPost, "/login/verify", "", req, &out); err != nil {
		return domain.Session{}, err
	}
	if out.Token == "" {
		return domain.Session{}, fmt.Errorf("relay: empty session token")
	}
	sess := domain.Session{Username: username, Token: out.Token}
	if out.ExpiresAt > 0 {
		sess.ExpiresAt = time.Unix(out.ExpiresAt, 0)
	}
	return sess, nil
}

// FetchPeerKey returns the keys username published at registration.
func (c *HTTP) FetchPeerKey(
	ctx context.Context,
	token string,
	username domain.Username,
) (domain.PeerPublicKey, error) {
	var out domain.PeerPublicKey
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username.String())+"/key", token, nil, &out); err != nil {
		return domain.PeerPublicKey{}, err
	}
	if out.Username == "" {
		out.Username = username
	}
	return out, nil
}

// ActiveUsers lists online and offline peers.
func (c *HTTP) ActiveUsers(ctx context.Context, token string) (domain.Presence, error) {
	var out domain.Presence
	if err := c.do(ctx, http.MethodGet, "/users/active", token, nil, &out); err != nil {
		return domain.Presence{}, err
	}
	return out, nil
}

// Descriptions returns username's free-form metadata blob.
func (c *HTTP) Descriptions(
	ctx context.Context,
	token string,
	username domain.Username,
) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, descriptionsPath(username), token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutDescriptions replaces username's metadata blob.
func (c *HTTP) PutDescriptions(
	ctx context.Context,
	token string,
	username domain.Username,
	blob json.RawMessage,
) error {
	return c.do(ctx, http.MethodPut, descriptionsPath(username), token, blob, nil)
}

func descriptionsPath(username domain.Username) string {
	return "/users/" + url.PathEscape(username.String()) + "/descriptions"
}

func (c *HTTP) do(ctx context.Context, method, path, token string, in any, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return domain.Transient(fmt.Errorf("relay %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
		}
		if serr.Temporary() {
			return domain.Transient(serr)
		}
		return serr
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("relay %s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

var _ domain.RelayClient = (*HTTP)(nil)
