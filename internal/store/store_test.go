package store_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"peerlink/internal/domain"
	"peerlink/internal/store"
)

func TestIdentity_SaveLoad_OK(t *testing.T) {
	home := t.TempDir()
	pass := "Correct-Horse-9!"

	var ids domain.IdentityStore = store.NewIdentityFileStore(home)

	id := domain.Identity{
		XPub:   domain.X25519Public{1},
		XPriv:  domain.X25519Private{2},
		EdPub:  domain.Ed25519Public{3},
		EdPriv: domain.Ed25519Private{4},
	}

	if err := ids.SaveIdentity(pass, id); err != nil {
		t.Fatalf("save identity: %v", err)
	}

	got, err := ids.LoadIdentity(pass)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	if got != id {
		t.Fatalf("mismatch after load")
	}
}

func TestIdentity_WrongPassphrase_Fails(t *testing.T) {
	home := t.TempDir()
	ids := store.NewIdentityFileStore(home)

	id := domain.Identity{XPub: domain.X25519Public{1}, XPriv: domain.X25519Private{2}}

	if err := ids.SaveIdentity("correct", id); err != nil {
		t.Fatalf("save identity: %v", err)
	}
	if _, err := ids.LoadIdentity("wrong"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}
}

func TestIdentity_Missing(t *testing.T) {
	ids := store.NewIdentityFileStore(t.TempDir())
	if ids.Exists() {
		t.Fatal("fresh directory reports an identity")
	}
	if _, err := ids.LoadIdentity("x"); !errors.Is(err, store.ErrNoIdentity) {
		t.Fatalf("want ErrNoIdentity, got %v", err)
	}
}

func TestAccounts_SaveLoadList(t *testing.T) {
	accounts := store.NewAccountFileStore(t.TempDir())

	if _, ok, err := accounts.LoadAccountProfile("https://a", "alice"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	profiles := []domain.AccountProfile{
		{ServerURL: "https://a", Username: "bob", RegisteredAt: 20},
		{ServerURL: "https://a", Username: "alice", RegisteredAt: 10},
		{ServerURL: "https://b", Username: "alice", RegisteredAt: 30},
	}
	for _, p := range profiles {
		if err := accounts.SaveAccountProfile(p); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	got, ok, err := accounts.LoadAccountProfile("https://b", "alice")
	if err != nil || !ok || got.RegisteredAt != 30 {
		t.Fatalf("load: %+v ok=%v err=%v", got, ok, err)
	}

	list, err := accounts.ListAccountProfiles("https://a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Username != "alice" || list[1].Username != "bob" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestSessions_ScopedByServer(t *testing.T) {
	home := t.TempDir()
	a := store.NewSessionFileStore(home, "https://a")
	b := store.NewSessionFileStore(home, "https://b")

	sess := domain.Session{Username: "alice", Token: "tok", ExpiresAt: time.Unix(1700000000, 0).UTC()}
	if err := a.SaveSession(sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := a.LoadSession("alice")
	if err != nil || !ok || got.Token != "tok" || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("load: %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := b.LoadSession("alice"); ok {
		t.Fatal("session leaked across servers")
	}

	if err := a.DeleteSession("alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := a.LoadSession("alice"); ok {
		t.Fatal("session still cached after delete")
	}
	if err := a.DeleteSession("nobody"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestIdentity_TamperedKDFParamsRejected(t *testing.T) {
	home := t.TempDir()
	ids := store.NewIdentityFileStore(home)
	if err := ids.SaveIdentity("pass", domain.Identity{XPub: domain.X25519Public{1}}); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(home, "identity.json.enc")

	tamper := func(n int) {
		t.Helper()
		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var blob map[string]any
		if err := json.Unmarshal(b, &blob); err != nil {
			t.Fatal(err)
		}
		blob["kdf"].(map[string]any)["n"] = n
		if b, err = json.Marshal(blob); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, b, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	// In range, but not what the ciphertext was sealed with.
	tamper(1 << 16)
	if _, err := ids.LoadIdentity("pass"); !errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want ErrWrongPassphrase, got %v", err)
	}

	tamper(1 << 30)
	if _, err := ids.LoadIdentity("pass"); err == nil || errors.Is(err, store.ErrWrongPassphrase) {
		t.Fatalf("want a parameter range error, got %v", err)
	}
}
