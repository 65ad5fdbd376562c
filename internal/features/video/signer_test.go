package video

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
)

func newTestSigner(now time.Time) *Signer {
	s := NewSigner(SignerConfig{
		Secret:          "video-secret",
		TTL:             15 * time.Minute,
		PublicBaseURL:   "https://api.example.com/",
		AllowedReferers: []string{"web.telegram.org", "example.com"},
	}, logger.Discard())
	s.now = func() time.Time { return now }
	return s
}

func inputFromURL(t *testing.T, signed SignedURL) VerifyInput {
	t.Helper()
	parsed, err := url.Parse(signed.SecureURL)
	if err != nil {
		t.Fatal(err)
	}
	q := parsed.Query()
	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		t.Fatal(err)
	}
	return VerifyInput{
		VideoID:   "vid-1",
		UserID:    q.Get("userId"),
		Token:     q.Get("token"),
		Expires:   expires,
		SessionID: q.Get("sid"),
		Referer:   "https://web.telegram.org/k/",
		UserAgent: "Mozilla/5.0 (iPhone) Telegram",
	}
}

func TestSignProducesStreamURL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)

	signed, err := s.Sign("vid-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := url.Parse(signed.SecureURL)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Host != "api.example.com" || parsed.Path != "/api/videos/stream/vid-1" {
		t.Fatalf("unexpected url %s", signed.SecureURL)
	}
	if signed.Expires != now.Add(15*time.Minute).Unix() {
		t.Fatalf("expires = %d", signed.Expires)
	}
	if parsed.Query().Get("userId") != "user-1" || parsed.Query().Get("sid") == "" {
		t.Fatalf("missing query values in %s", signed.SecureURL)
	}
}

func TestSignTwiceGivesDistinctURLs(t *testing.T) {
	s := newTestSigner(time.Now())

	a, err := s.Sign("vid-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Sign("vid-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if a.SecureURL == b.SecureURL || a.SessionID == b.SessionID {
		t.Fatal("expected distinct sessions per signed url")
	}
}

func TestSignRequiresVideoID(t *testing.T) {
	s := newTestSigner(time.Now())
	if _, err := s.Sign("  ", "user-1"); !errors.Is(err, ErrVideoIDRequired) {
		t.Fatalf("err = %v", err)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)

	signed, err := s.Sign("vid-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := s.Verify(inputFromURL(t, signed))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.VideoID != "vid-1" || claims.UserID != "user-1" || claims.SessionID != signed.SessionID {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(in *VerifyInput, s *Signer)
		want   error
	}{
		{
			name:   "expired",
			mutate: func(in *VerifyInput, s *Signer) { s.now = func() time.Time { return now.Add(16 * time.Minute) } },
			want:   ErrVideoTokenExpired,
		},
		{
			name:   "foreign referer",
			mutate: func(in *VerifyInput, s *Signer) { in.Referer = "https://evil.example.net/page" },
			want:   ErrRefererNotAllowed,
		},
		{
			name:   "lookalike referer",
			mutate: func(in *VerifyInput, s *Signer) { in.Referer = "https://notexample.com/" },
			want:   ErrRefererNotAllowed,
		},
		{
			name:   "curl",
			mutate: func(in *VerifyInput, s *Signer) { in.UserAgent = "curl/8.4.0" },
			want:   ErrUserAgentBlocked,
		},
		{
			name:   "headless browser",
			mutate: func(in *VerifyInput, s *Signer) { in.UserAgent = "Mozilla/5.0 HeadlessChrome/120" },
			want:   ErrUserAgentBlocked,
		},
		{
			name:   "garbage token",
			mutate: func(in *VerifyInput, s *Signer) { in.Token = "not-a-jwt" },
			want:   ErrInvalidVideoToken,
		},
		{
			name:   "other video",
			mutate: func(in *VerifyInput, s *Signer) { in.VideoID = "vid-2" },
			want:   ErrFingerprintMismatch,
		},
		{
			name:   "other user",
			mutate: func(in *VerifyInput, s *Signer) { in.UserID = "user-2" },
			want:   ErrFingerprintMismatch,
		},
		{
			name:   "tampered expiry",
			mutate: func(in *VerifyInput, s *Signer) { in.Expires += 600 },
			want:   ErrTokenMismatch,
		},
		{
			name:   "other session",
			mutate: func(in *VerifyInput, s *Signer) { in.SessionID = "deadbeef" },
			want:   ErrTokenMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSigner(now)
			signed, err := s.Sign("vid-1", "user-1")
			if err != nil {
				t.Fatal(err)
			}
			in := inputFromURL(t, signed)
			tt.mutate(&in, s)

			_, err = s.Verify(in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.want)
			}
			if !IsAccessDenied(err) {
				t.Fatalf("%v should map to access denied", err)
			}
		})
	}
}

func TestVerifyAcceptsMissingAndSubdomainReferer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSigner(now)

	for _, referer := range []string{"", "https://app.example.com/watch"} {
		signed, err := s.Sign("vid-1", "user-1")
		if err != nil {
			t.Fatal(err)
		}
		in := inputFromURL(t, signed)
		in.Referer = referer
		if _, err := s.Verify(in); err != nil {
			t.Errorf("referer %q rejected: %v", referer, err)
		}
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	signed, err := newTestSigner(now).Sign("vid-1", "user-1")
	if err != nil {
		t.Fatal(err)
	}

	other := NewSigner(SignerConfig{Secret: "other", AllowedReferers: []string{"web.telegram.org"}}, logger.Discard())
	other.now = func() time.Time { return now }

	if _, err := other.Verify(inputFromURL(t, signed)); !errors.Is(err, ErrInvalidVideoToken) {
		t.Fatalf("err = %v", err)
	}
}

func TestClampProgress(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 55: 55, 100: 100, 140: 100} {
		if got := ClampProgress(in); got != want {
			t.Errorf("ClampProgress(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestProgressPercent(t *testing.T) {
	for in, want := range map[float64]int{-1e20: 0, -1: 0, 0: 0, 89.99: 89, 90: 90, 1e20: 100, math.MaxFloat64: 100} {
		got, err := ProgressPercent(in)
		if err != nil || got != want {
			t.Errorf("ProgressPercent(%v) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := ProgressPercent(in); !errors.Is(err, ErrInvalidProgress) {
			t.Errorf("ProgressPercent(%v) err = %v", in, err)
		}
	}
}
