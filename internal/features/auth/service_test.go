package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/testutil"
	"github.com/mo-amir99/wb-simple-server-go/internal/utils/jwt"
	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/logger"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewDB(t, &user.User{}, &RevokedToken{})
	log := logger.Discard()

	return NewService(
		db,
		NewVerifier(testBotToken, 0, false),
		NewRevocationStore(db, cache.NewMemoryCache(), log),
		TokenConfig{
			Secret:        "access-secret",
			RefreshSecret: "access-secret_refresh",
			AccessTTL:     time.Hour,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		log,
	)
}

func TestFirstAndSecondTelegramLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.AuthenticateTelegram(ctx, TelegramLoginInput{
		InitData: signedInitData(t, testBotToken, time.Now(), `{"id":111,"first_name":"Ann","username":"ann"}`),
	})
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if !first.IsNewUser {
		t.Fatal("expected first login to create the user")
	}
	if first.User.Role != types.RoleUser || first.User.IsAdmin() {
		t.Fatalf("role = %q, want USER", first.User.Role)
	}
	if first.User.HasActiveSubscription {
		t.Fatal("new users must not have an active subscription")
	}
	if first.User.TelegramID != "111" {
		t.Fatalf("telegramId = %q", first.User.TelegramID)
	}

	second, err := svc.AuthenticateTelegram(ctx, TelegramLoginInput{
		InitData: signedInitData(t, testBotToken, time.Now(), `{"id":111,"first_name":"Anna","username":"ann"}`),
	})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if second.IsNewUser {
		t.Fatal("second login must not create a new user")
	}
	if second.User.ID != first.User.ID || second.User.TelegramID != "111" {
		t.Fatalf("identity changed: %s/%s -> %s/%s", first.User.ID, first.User.TelegramID, second.User.ID, second.User.TelegramID)
	}
	if second.User.FirstName != "Anna" {
		t.Fatalf("firstName = %q, want Anna", second.User.FirstName)
	}
	if second.User.Username != "ann" || second.User.Role != types.RoleUser {
		t.Fatalf("unrelated fields changed: %+v", second.User)
	}

	claims, err := jwt.VerifyAccessToken(second.Token, "access-secret")
	if err != nil {
		t.Fatalf("issued access token invalid: %v", err)
	}
	if claims.TelegramID != "111" || claims.UserID != first.User.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestFailedVerificationCreatesNoUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.AuthenticateTelegram(context.Background(), TelegramLoginInput{
		InitData: signedInitData(t, "wrong:token", time.Now(), `{"id":222,"first_name":"Eve"}`),
	})
	if !errors.Is(err, ErrInitDataHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}

	var count int64
	svc.db.Model(&user.User{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no users, found %d", count)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	login, err := svc.AuthenticateTelegram(ctx, TelegramLoginInput{
		InitData: signedInitData(t, testBotToken, time.Now(), `{"id":333,"first_name":"Rot"}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	pair, err := svc.Refresh(ctx, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == login.RefreshToken {
		t.Fatal("expected a fresh token pair")
	}

	if _, err := svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("reusing a rotated refresh token: got %v, want ErrTokenRevoked", err)
	}

	if _, err := svc.Refresh(ctx, login.Token); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("access token used as refresh: got %v", err)
	}
}

func TestConcurrentRefreshReplaysRotateOnce(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	login, err := svc.AuthenticateTelegram(ctx, TelegramLoginInput{
		InitData: signedInitData(t, testBotToken, time.Now(), `{"id":444,"first_name":"Race"}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	const attempts = 4
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, login.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, ErrTokenRevoked):
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d refreshes succeeded with one token, want exactly 1", succeeded)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	login, err := svc.AuthenticateTelegram(ctx, TelegramLoginInput{
		InitData: signedInitData(t, testBotToken, time.Now(), `{"id":444,"first_name":"Bye"}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Authenticate(ctx, login.Token); err != nil {
		t.Fatalf("token should be valid before logout: %v", err)
	}

	if err := svc.Logout(ctx, login.Token, login.RefreshToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, _, err := svc.Authenticate(ctx, login.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked access token, got %v", err)
	}
	if _, err := svc.Refresh(ctx, login.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked refresh token, got %v", err)
	}
}

func TestRevocationSurvivesCacheLossAndPurges(t *testing.T) {
	db := testutil.NewDB(t, &RevokedToken{})
	store := NewRevocationStore(db, nil, logger.Discard())
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	if claimed, err := store.Revoke(ctx, "tok", now.Add(time.Minute)); err != nil || !claimed {
		t.Fatalf("first Revoke() = %v, %v", claimed, err)
	}
	if claimed, err := store.Revoke(ctx, "tok", now.Add(time.Minute)); err != nil || claimed {
		t.Fatalf("second Revoke() = %v, %v; want a no-op", claimed, err)
	}
	if claimed, _ := store.Revoke(ctx, "old", now.Add(-time.Minute)); claimed {
		t.Fatal("expired tokens must not be recorded")
	}

	revoked, err := store.IsRevoked(ctx, "tok")
	if err != nil || !revoked {
		t.Fatalf("IsRevoked() = %v, %v", revoked, err)
	}

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	removed, err := store.PurgeExpired(ctx)
	if err != nil || removed != 1 {
		t.Fatalf("PurgeExpired() = %d, %v", removed, err)
	}
}
