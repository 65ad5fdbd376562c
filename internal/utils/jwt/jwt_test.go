package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

const secret = "test-secret"

func testIdentity() Identity {
	return Identity{ID: uuid.New(), TelegramID: "111", Role: types.RoleUser}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	identity := testIdentity()

	token, err := GenerateAccessToken(identity, secret, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := VerifyAccessToken(token, secret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if got := claims.Identity(); got != identity {
		t.Fatalf("identity = %+v, want %+v", got, identity)
	}
}

func TestExpiredTokenIsDistinct(t *testing.T) {
	token, err := GenerateAccessToken(testIdentity(), secret, -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = VerifyAccessToken(token, secret)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("err = %v, want ErrExpiredToken", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatal("expired token must not be reported as invalid")
	}
}

func TestWrongSecretIsInvalid(t *testing.T) {
	token, _ := GenerateAccessToken(testIdentity(), secret, time.Hour)

	if _, err := VerifyAccessToken(token, "other"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestRefreshTokenUsesOwnSecretAndType(t *testing.T) {
	identity := testIdentity()
	refreshSecret := secret + "_refresh"

	refresh, err := GenerateRefreshToken(identity, refreshSecret, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := VerifyRefreshToken(refresh, refreshSecret); err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if _, err := VerifyRefreshToken(refresh, secret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh verified with access secret: %v", err)
	}
	if _, err := VerifyAccessToken(refresh, refreshSecret); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh accepted as access token: %v", err)
	}
}

func TestTokensIssuedTogetherDiffer(t *testing.T) {
	identity := testIdentity()
	a, _ := GenerateAccessToken(identity, secret, time.Hour)
	b, _ := GenerateAccessToken(identity, secret, time.Hour)
	if a == b {
		t.Fatal("expected unique jti per token")
	}
}

func TestMalformedToken(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b.c"} {
		if _, err := VerifyToken(token, secret); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("VerifyToken(%q) err = %v", token, err)
		}
	}
}
