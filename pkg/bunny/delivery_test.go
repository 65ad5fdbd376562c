package bunny

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestSignedPlaylistURL(t *testing.T) {
	signer := NewDeliverySigner("vz-test.b-cdn.net/", "key", time.Hour)
	fixed := time.Unix(1_700_000_000, 0)
	signer.now = func() time.Time { return fixed }

	raw, err := signer.SignedPlaylistURL("/abc-123/")
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Scheme != "https" || parsed.Host != "vz-test.b-cdn.net" || parsed.Path != "/abc-123/playlist.m3u8" {
		t.Fatalf("unexpected url: %s", raw)
	}

	expires := parsed.Query().Get("expires")
	if expires != "1700003600" {
		t.Fatalf("expires = %s", expires)
	}

	sum := sha256.Sum256([]byte("key/abc-123/playlist.m3u81700003600"))
	want := strings.TrimRight(base64.URLEncoding.EncodeToString(sum[:]), "=")
	if got := parsed.Query().Get("token"); got != want {
		t.Fatalf("token = %s, want %s", got, want)
	}
}

func TestSignedPlaylistURLRequiresConfig(t *testing.T) {
	if _, err := NewDeliverySigner("", "", 0).SignedPlaylistURL("abc"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewDeliverySigner("cdn", "key", 0).SignedPlaylistURL(" "); !errors.Is(err, ErrVideoRequired) {
		t.Fatalf("expected ErrVideoRequired, got %v", err)
	}
}
