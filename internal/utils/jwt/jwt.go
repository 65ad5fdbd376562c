package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

var (
	ErrInvalidToken = errors.New("invalid or malformed token")
	ErrExpiredToken = errors.New("token has expired")
)

const issuer = "wb-simple"

// Token types carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Identity is the subject embedded in session tokens.
type Identity struct {
	ID         uuid.UUID  `json:"id"`
	TelegramID string     `json:"telegramId"`
	Role       types.Role `json:"role"`
}

type Claims struct {
	UserID     uuid.UUID  `json:"id"`
	TelegramID string     `json:"telegramId"`
	Role       types.Role `json:"role"`
	Type       string     `json:"typ"`
	jwt.RegisteredClaims
}

// Identity returns the subject carried by the claims.
func (c *Claims) Identity() Identity {
	return Identity{ID: c.UserID, TelegramID: c.TelegramID, Role: c.Role}
}

// ExpiresAtTime returns the expiry, or the zero time when absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// GenerateAccessToken creates a short-lived JWT for API access.
func GenerateAccessToken(identity Identity, secret string, expiry time.Duration) (string, error) {
	return generate(identity, TypeAccess, secret, expiry)
}

// GenerateRefreshToken creates a long-lived JWT for token refresh.
// Callers pass the refresh secret, never the access secret.
func GenerateRefreshToken(identity Identity, secret string, expiry time.Duration) (string, error) {
	return generate(identity, TypeRefresh, secret, expiry)
}

func generate(identity Identity, tokenType, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     identity.ID,
		TelegramID: identity.TelegramID,
		Role:       identity.Role,
		Type:       tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   identity.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyToken validates a JWT and extracts claims. Expiry is reported as
// ErrExpiredToken; every other failure as ErrInvalidToken.
func VerifyToken(tokenString string, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyAccessToken validates an access token.
func VerifyAccessToken(tokenString, secret string) (*Claims, error) {
	return verifyType(tokenString, secret, TypeAccess)
}

// VerifyRefreshToken validates a refresh token.
func VerifyRefreshToken(tokenString, secret string) (*Claims, error) {
	return verifyType(tokenString, secret, TypeRefresh)
}

func verifyType(tokenString, secret, tokenType string) (*Claims, error) {
	claims, err := VerifyToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
