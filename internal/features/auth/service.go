package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mo-amir99/wb-simple-server-go/internal/features/user"
	"github.com/mo-amir99/wb-simple-server-go/internal/utils/jwt"
	"github.com/mo-amir99/wb-simple-server-go/pkg/metrics"
)

// TokenConfig holds the secrets and lifetimes used to issue session tokens.
type TokenConfig struct {
	Secret        string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TelegramLoginInput is the payload of POST /auth/telegram.
type TelegramLoginInput struct {
	InitData string
	// TelegramUser is only consulted when verification is skipped and
	// initData carries no user.
	TelegramUser *TelegramUser
}

// AuthResponse is returned after a successful login.
type AuthResponse struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	User         *user.User `json:"user"`
	IsNewUser    bool       `json:"isNewUser"`
}

// Service issues, refreshes, and revokes sessions.
type Service struct {
	db          *gorm.DB
	verifier    *Verifier
	revocations *RevocationStore
	tokens      TokenConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires the auth service.
func NewService(db *gorm.DB, verifier *Verifier, revocations *RevocationStore, tokens TokenConfig, logger *slog.Logger) *Service {
	return &Service{
		db:          db,
		verifier:    verifier,
		revocations: revocations,
		tokens:      tokens,
		logger:      logger,
		now:         time.Now,
	}
}

// AuthenticateTelegram verifies initData, upserts the user, and issues a token pair.
// No user row is touched when verification fails.
func (s *Service) AuthenticateTelegram(ctx context.Context, input TelegramLoginInput) (*AuthResponse, error) {
	data, err := s.verifier.Verify(input.InitData)
	if err != nil {
		metrics.RecordAuth("telegram", "rejected")
		return nil, err
	}

	tgUser := data.User
	if tgUser == nil && s.verifier.Skipping() {
		tgUser = input.TelegramUser
	}
	if tgUser == nil || tgUser.ID == 0 {
		metrics.RecordAuth("telegram", "rejected")
		return nil, ErrTelegramUserMissing
	}

	usr, created, err := user.FindOrCreate(s.db.WithContext(ctx), tgUser.Profile(), s.now())
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(&usr)
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("telegram user registered",
			slog.String("userId", usr.ID.String()),
			slog.String("telegramId", usr.TelegramID))
	}
	metrics.RecordAuth("telegram", "success")

	return &AuthResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         &usr,
		IsNewUser:    created,
	}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new pair issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	claims, err := jwt.VerifyRefreshToken(refreshToken, s.tokens.RefreshSecret)
	if err != nil {
		metrics.RecordAuth("refresh", "rejected")
		if errors.Is(err, jwt.ErrExpiredToken) {
			return nil, ErrRefreshTokenExpired
		}
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if revoked {
		metrics.RecordAuth("refresh", "revoked")
		return nil, ErrTokenRevoked
	}

	usr, err := user.Get(s.db.WithContext(ctx), claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// Rotation claims the token; a concurrent replay loses here.
	claimed, err := s.revocations.Revoke(ctx, refreshToken, claims.ExpiresAtTime())
	if err != nil {
		return nil, err
	}
	if !claimed {
		metrics.RecordAuth("refresh", "revoked")
		return nil, ErrTokenRevoked
	}

	pair, err := s.issuePair(&usr)
	if err != nil {
		return nil, err
	}

	metrics.RecordAuth("refresh", "success")
	return pair, nil
}

// Logout revokes the access token and, when supplied, the refresh token.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if claims, err := jwt.VerifyAccessToken(accessToken, s.tokens.Secret); err == nil {
		if _, err := s.revocations.Revoke(ctx, accessToken, claims.ExpiresAtTime()); err != nil {
			return err
		}
	}

	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil
	}

	claims, err := jwt.VerifyRefreshToken(refreshToken, s.tokens.RefreshSecret)
	if err != nil {
		s.logger.Debug("ignoring unusable refresh token on logout", slog.String("error", err.Error()))
		return nil
	}
	_, err = s.revocations.Revoke(ctx, refreshToken, claims.ExpiresAtTime())
	return err
}

// Me loads the caller's user row.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (user.User, error) {
	usr, err := user.Get(s.db.WithContext(ctx), id)
	if errors.Is(err, user.ErrUserNotFound) {
		return usr, ErrUserNotFound
	}
	return usr, err
}

// Authenticate resolves an access token to its claims and user. Revocation is
// checked before signature and expiry.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*jwt.Claims, *user.User, error) {
	revoked, err := s.revocations.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, ErrTokenRevoked
	}

	claims, err := jwt.VerifyAccessToken(accessToken, s.tokens.Secret)
	if err != nil {
		return nil, nil, err
	}

	usr, err := user.Get(s.db.WithContext(ctx), claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	return claims, &usr, nil
}

// VerifyInitDataFor checks a per-request initData header against the session's Telegram id.
func (s *Service) VerifyInitDataFor(raw, telegramID string) error {
	data, err := s.verifier.Verify(raw)
	if err != nil {
		return err
	}
	if data.User == nil {
		if s.verifier.Skipping() {
			return nil
		}
		return ErrTelegramUserMissing
	}
	if data.User.TelegramIDString() != telegramID {
		return ErrTelegramUserMismatch
	}
	return nil
}

func (s *Service) issuePair(usr *user.User) (*jwt.TokenPair, error) {
	identity := jwt.Identity{ID: usr.ID, TelegramID: usr.TelegramID, Role: usr.Role}

	accessToken, err := jwt.GenerateAccessToken(identity, s.tokens.Secret, s.tokens.AccessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(identity, s.tokens.RefreshSecret, s.tokens.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &jwt.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// ExtractToken strips the "Bearer " prefix from an Authorization header.
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
