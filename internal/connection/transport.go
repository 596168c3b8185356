package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"peerlink/internal/domain"
)

// Conn is one upgraded transport. ReadMessage is called from a single
// reader goroutine and WriteMessage/Ping from a single writer goroutine;
// Close may be called from anywhere.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(frame []byte) error
	Ping() error
	Close() error
}

// Dialer opens a Conn, presenting token during the upgrade. A rejected
// token must surface as an error matching domain.ErrUnauthorized.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// WSDialer dials the coordinating server's websocket endpoint with gorilla.
type WSDialer struct {
	URL          string
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration
	// ReadTimeout is how long a connection may stay silent. Frames, pings
	// and pongs all count as traffic. Zero never times out.
	ReadTimeout time.Duration
}

// DialerOptions configures NewWSDialer.
type DialerOptions struct {
	HandshakeTimeout   time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	InsecureSkipVerify bool
	Logger             zerolog.Logger
}

// NewWSDialer returns a dialer for the websocket endpoint of serverURL.
// serverURL may use http(s) or ws(s); http is mapped to ws.
func NewWSDialer(serverURL string, opts DialerOptions) (*WSDialer, error) {
	wsURL, err := WebsocketURL(serverURL)
	if err != nil {
		return nil, err
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 30 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	d := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.HandshakeTimeout,
	}
	if opts.InsecureSkipVerify {
		opts.Logger.Warn().
			Str("url", wsURL).
			Msg("TLS certificate verification disabled; use only against a development server")
		d.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-out
	}
	return &WSDialer{
		URL:          wsURL,
		Dialer:       d,
		WriteTimeout: opts.WriteTimeout,
		ReadTimeout:  opts.ReadTimeout,
	}, nil
}

// WebsocketURL derives the /ws endpoint from a server base URL.
func WebsocketURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	}
	return u.String(), nil
}

// Dial performs the upgrade with an Authorization: Bearer header.
func (d *WSDialer) Dial(ctx context.Context, token string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	c, resp, err := d.Dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			switch {
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return nil, fmt.Errorf("websocket upgrade: %s: %w", resp.Status, domain.ErrUnauthorized)
			case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
				return nil, fmt.Errorf("websocket upgrade: %s", resp.Status)
			}
		}
		return nil, domain.Transient(fmt.Errorf("websocket dial: %w", err))
	}
	return newWSConn(c, d.WriteTimeout, d.ReadTimeout)
}

type wsConn struct {
	c            *websocket.Conn
	writeTimeout time.Duration
	readTimeout  time.Duration
}

func newWSConn(c *websocket.Conn, writeTimeout, readTimeout time.Duration) (*wsConn, error) {
	w := &wsConn{c: c, writeTimeout: writeTimeout, readTimeout: readTimeout}
	if err := w.extendRead(); err != nil {
		_ = c.Close()
		return nil, domain.Transient(fmt.Errorf("websocket read deadline: %w", err))
	}
	c.SetPongHandler(func(string) error { return w.extendRead() })
	c.SetPingHandler(func(data string) error {
		if err := w.extendRead(); err != nil {
			return err
		}
		err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(w.writeTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return err
	})
	return w, nil
}

// extendRead pushes the read deadline out by readTimeout.
func (w *wsConn) extendRead() error {
	if w.readTimeout <= 0 {
		return nil
	}
	return w.c.SetReadDeadline(time.Now().Add(w.readTimeout))
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := w.c.ReadMessage()
		if err != nil {
			return nil, err
		}
		if err := w.extendRead(); err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (w *wsConn) WriteMessage(frame []byte) error {
	if err := w.c.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return err
	}
	return w.c.WriteMessage(websocket.TextMessage, frame)
}

func (w *wsConn) Ping() error {
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeTimeout))
}

func (w *wsConn) Close() error {
	_ = w.c.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := w.c.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
