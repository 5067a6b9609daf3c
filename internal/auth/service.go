package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/revocation"
	"github.com/Kyz7/blog/internal/utils"
	"gorm.io/gorm"
)

// errInvalidRefresh covers every way a refresh token can fail: bad signature,
// expiry, unknown or inactive user, or a value other than the one stored.
var errInvalidRefresh = errors.New("refresh token is invalid or no longer current")

type Session struct {
	User         models.UserProfile `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type Service struct {
	db          *gorm.DB
	issuer      *Issuer
	revocations *revocation.Store
}

func NewService(db *gorm.DB, issuer *Issuer, revocations *revocation.Store) *Service {
	return &Service{db: db, issuer: issuer, revocations: revocations}
}

func (s *Service) Issuer() *Issuer {
	return s.issuer
}

// Login verifies credentials and starts a new session. A still valid access
// token presented with the request is revoked in the same transaction that
// rotates the user's refresh token.
func (s *Service) Login(ctx context.Context, email, password, presentedToken string) (*Session, error) {
	var session *Session

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if presentedToken != "" {
			if claims, err := s.issuer.ParseAccessToken(presentedToken); err == nil {
				err := s.revocations.WithTx(tx).Revoke(ctx, presentedToken, claims.ExpiresAt.Time, claims.ID)
				if err != nil {
					return err
				}
			}
		}

		var user models.User
		if err := tx.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("User")
			}
			return err
		}
		if !user.Active {
			return apperror.Forbidden("Account is deactivated")
		}
		if !utils.CheckPasswordHash(password, user.Password) {
			return apperror.Unauthenticated(apperror.CodeInvalidCredentials, "Invalid email or password")
		}

		accessToken, err := s.issuer.IssueAccessToken(&user)
		if err != nil {
			return apperror.Internal("Failed to issue access token", err)
		}
		refreshToken, err := s.issuer.IssueRefreshToken(&user)
		if err != nil {
			return apperror.Internal("Failed to issue refresh token", err)
		}

		if err := tx.Model(&user).Update("refresh_token", refreshToken).Error; err != nil {
			return err
		}

		session = &Session{
			User:         user.Profile(),
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Logout revokes every access token the request holds, including one renewed
// on the side, and clears the stored refresh token, atomically.
func (s *Service) Logout(ctx context.Context, identity *Identity) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.revocations.WithTx(tx)
		if err := store.Revoke(ctx, identity.Token, identity.ExpiresAt, identity.ID); err != nil {
			return err
		}
		if identity.Renewed != "" {
			if err := store.Revoke(ctx, identity.Renewed, identity.RenewedExpiresAt, identity.ID); err != nil {
				return err
			}
		}
		return tx.Model(&models.User{}).
			Where("id = ?", identity.ID).
			Update("refresh_token", nil).Error
	})
}

// Refresh exchanges a refresh token for a new access token. Revoking access
// tokens has no effect here; only the stored refresh token matters.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	_, accessToken, err := s.renewSession(ctx, refreshToken)
	if errors.Is(err, errInvalidRefresh) {
		return "", apperror.ForbiddenCode(apperror.CodeInvalidRefreshToken, "Invalid or expired refresh token")
	}
	return accessToken, err
}

func (s *Service) CheckAuth(ctx context.Context, userID uint) (*models.UserProfile, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("User")
		}
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// renewSession verifies refreshToken and requires it to equal the single value
// stored on its user. On success the user record and a new access token are returned.
func (s *Service) renewSession(ctx context.Context, refreshToken string) (*models.User, string, error) {
	claims, err := s.issuer.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, "", errInvalidRefresh
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, claims.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errInvalidRefresh
		}
		return nil, "", err
	}
	if !user.Active || !sameToken(user.RefreshToken, refreshToken) {
		return nil, "", errInvalidRefresh
	}

	accessToken, err := s.issuer.IssueAccessToken(&user)
	if err != nil {
		return nil, "", apperror.Internal("Failed to issue access token", err)
	}
	return &user, accessToken, nil
}

// silentRefresh mints a replacement access token for a user whose current
// token is close to expiry. ok is false when the user has no usable session.
func (s *Service) silentRefresh(ctx context.Context, userID uint) (token string, ok bool, err error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if !user.Active || user.RefreshToken == nil {
		return "", false, nil
	}
	if _, err := s.issuer.ParseRefreshToken(*user.RefreshToken); err != nil {
		return "", false, nil
	}

	token, err = s.issuer.IssueAccessToken(&user)
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func sameToken(stored *string, presented string) bool {
	if stored == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(presented)) == 1
}

func (s *Service) accessExpiry() time.Time {
	return s.issuer.now().Add(AccessTokenTTL)
}
