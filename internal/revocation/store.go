// Package revocation records access tokens invalidated before their natural
// expiry (logout, re-login) and sweeps the rows once those tokens expire.
package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/utils"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cachePrefix = "revoked:"

// Store is backed by the relational database. An optional Redis client caches
// positive lookups until the token's own expiry; the database stays the source of truth.
type Store struct {
	db    *gorm.DB
	cache *redis.Client
	now   func() time.Time
}

func NewStore(db *gorm.DB, cache *redis.Client) *Store {
	return &Store{db: db, cache: cache, now: time.Now}
}

// WithTx binds the store to a transaction so revocation commits or rolls back
// together with the caller's other writes.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	cp := *s
	cp.db = tx
	return &cp
}

// WithClock is used by the sweeper tests and by callers that need a fixed "now".
func (s *Store) WithClock(now func() time.Time) *Store {
	cp := *s
	cp.now = now
	return &cp
}

// Revoke inserts the token, or does nothing if it is already recorded.
func (s *Store) Revoke(ctx context.Context, token string, expiresAt time.Time, userID uint) error {
	if token == "" {
		return errors.New("revocation: empty token")
	}
	row := models.RevokedToken{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		UserID:    userID,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(&row).Error
}

// IsRevoked reports whether token is on the list and not yet past its expiry.
// Expired rows are ignored so the verifier rejects such tokens as expired,
// whether or not the sweeper has run.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	now := s.now().UTC()

	if s.cache != nil {
		n, err := s.cache.Exists(ctx, cacheKey(token)).Result()
		if err == nil && n > 0 {
			return true, nil
		}
		if err != nil {
			log.Warnf("⚠️  Revocation cache lookup failed, using database: %v", err)
		}
	}

	var rows []models.RevokedToken
	err := s.db.WithContext(ctx).
		Select("id", "expires_at").
		Where("token = ? AND expires_at > ?", token, now).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}

	if s.cache != nil {
		if ttl := rows[0].ExpiresAt.Sub(now); ttl > 0 {
			if err := s.cache.Set(ctx, cacheKey(token), 1, ttl).Err(); err != nil {
				log.Warnf("⚠️  Revocation cache write failed: %v", err)
			}
		}
	}
	return true, nil
}

// Sweep deletes every row whose expiry is before now and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now().UTC()).
		Delete(&models.RevokedToken{})
	return result.RowsAffected, result.Error
}

func cacheKey(token string) string {
	return cachePrefix + utils.HashToken(token)
}
