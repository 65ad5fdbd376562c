package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mo-amir99/wb-simple-server-go/pkg/cache"
	"github.com/mo-amir99/wb-simple-server-go/pkg/types"
)

const revokedKeyPrefix = "revoked:"

// RevokedToken records a token that must be rejected until it expires.
type RevokedToken struct {
	types.BaseModel

	TokenHash string    `gorm:"type:char(64);not null;uniqueIndex;column:token_hash" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index;column:expires_at" json:"expiresAt"`
}

// TableName overrides the default table name.
func (RevokedToken) TableName() string { return "revoked_tokens" }

// RevocationStore persists revoked tokens and mirrors them in the cache.
type RevocationStore struct {
	db     *gorm.DB
	cache  cache.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRevocationStore creates a store. cacheClient may be nil.
func NewRevocationStore(db *gorm.DB, cacheClient cache.Client, logger *slog.Logger) *RevocationStore {
	return &RevocationStore{db: db, cache: cacheClient, logger: logger, now: time.Now}
}

// HashToken returns the hex SHA-256 digest stored in place of a raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Revoke marks token as revoked until expiresAt. It reports whether this
// call recorded the revocation; false means the token was already revoked or
// had already expired.
func (s *RevocationStore) Revoke(ctx context.Context, token string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(s.now())
	if token == "" || ttl <= 0 {
		return false, nil
	}

	hash := HashToken(token)
	record := RevokedToken{TokenHash: hash, ExpiresAt: expiresAt}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_hash"}}, DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return false, res.Error
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, revokedKeyPrefix+hash, "1", ttl); err != nil {
			s.logger.Warn("failed to cache revoked token", slog.String("error", err.Error()))
		}
	}
	return res.RowsAffected > 0, nil
}

// IsRevoked checks the cache first and falls back to the database.
func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	hash := HashToken(token)

	if s.cache != nil {
		count, err := s.cache.Exists(ctx, revokedKeyPrefix+hash)
		if err == nil && count > 0 {
			return true, nil
		}
	}

	var record RevokedToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", hash, s.now()).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PurgeExpired deletes rows whose tokens can no longer be presented.
func (s *RevocationStore) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&RevokedToken{})
	return res.RowsAffected, res.Error
}

// CleanupJob removes expired revocation rows on a schedule.
type CleanupJob struct {
	store  *RevocationStore
	logger *slog.Logger
}

// NewCleanupJob wraps store for the job scheduler.
func NewCleanupJob(store *RevocationStore, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{store: store, logger: logger}
}

func (j *CleanupJob) Name() string {
	return "revoked-token-cleanup"
}

func (j *CleanupJob) Execute(ctx context.Context) error {
	removed, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.logger.Info("purged expired revoked tokens", slog.Int64("count", removed))
	}
	return nil
}
