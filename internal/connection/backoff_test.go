package connection_test

import (
	"testing"
	"time"

	"peerlink/internal/connection"
)

func TestBackoff_NonDecreasingUpToCap(t *testing.T) {
	rolls := []float64{0.99, 0, 0.5, 0.99, 0, 0.7, 0.1, 0.99}
	i := 0
	b := connection.Backoff{
		Base:   time.Second,
		Max:    20 * time.Second,
		Jitter: 1,
		Rand: func() float64 {
			r := rolls[i%len(rolls)]
			i++
			return r
		},
	}

	var prev time.Duration
	for n := 0; n < 12; n++ {
		d := b.Next()
		if d < prev {
			t.Fatalf("delay %d decreased: %s after %s", n, d, prev)
		}
		if d > b.Max {
			t.Fatalf("delay %d above cap: %s", n, d)
		}
		prev = d
	}
	if prev != b.Max {
		t.Fatalf("sequence never reached the cap: %s", prev)
	}
}

func TestBackoff_JitterAboveOneIsClamped(t *testing.T) {
	b := connection.Backoff{Base: time.Second, Max: time.Hour, Jitter: 5, Rand: func() float64 { return 0.99 }}
	first := b.Next()
	second := b.Next()
	if first >= 2*time.Second || second < first {
		t.Fatalf("jitter not clamped: %s, %s", first, second)
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := connection.Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Second}
	for n := 0; n < 5; n++ {
		b.Next()
	}
	if b.Failures() != 5 {
		t.Fatalf("failures = %d", b.Failures())
	}
	b.Reset()
	if d := b.Next(); d != 500*time.Millisecond {
		t.Fatalf("after reset got %s, want base", d)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to connection.State
		ok       bool
	}{
		{connection.Disconnected, connection.Connecting, true},
		{connection.Connecting, connection.Authenticating, true},
		{connection.Connecting, connection.Connected, false},
		{connection.Authenticating, connection.Connected, true},
		{connection.Connected, connection.Reconnecting, true},
		{connection.Reconnecting, connection.Connected, false},
		{connection.Reconnecting, connection.Connecting, true},
		{connection.Closed, connection.Connecting, true},
		{connection.Closed, connection.Connected, false},
	}
	for _, c := range cases {
		if got := connection.CanTransition(c.from, c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestWebsocketURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":     "ws://localhost:8080/ws",
		"https://relay.example/":    "wss://relay.example/ws",
		"https://relay.example/api": "wss://relay.example/api/ws",
		"ws://localhost:8080/ws":    "ws://localhost:8080/ws",
	}
	for in, want := range cases {
		got, err := connection.WebsocketURL(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Errorf("%s: got %s, want %s", in, got, want)
		}
	}
	if _, err := connection.WebsocketURL("ftp://x"); err == nil {
		t.Fatal("ftp scheme accepted")
	}
}
