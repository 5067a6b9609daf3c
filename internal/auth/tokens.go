package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Kyz7/blog/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	minSecretLength = 32
)

type AccessClaims struct {
	ID    uint        `json:"id"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	ID uint `json:"id"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies access and refresh tokens. Each class has its own secret.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewIssuer(accessSecret, refreshSecret string) (*Issuer, error) {
	if len(accessSecret) < minSecretLength {
		return nil, fmt.Errorf("access token secret must be at least %d characters", minSecretLength)
	}
	if len(refreshSecret) < minSecretLength {
		return nil, fmt.Errorf("refresh token secret must be at least %d characters", minSecretLength)
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh token secrets must differ")
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}, nil
}

func (i *Issuer) registered(subject uint, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Subject:   fmt.Sprint(subject),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) IssueAccessToken(u *models.User) (string, error) {
	claims := AccessClaims{
		ID:               u.ID,
		Email:            u.Email,
		Role:             u.Role,
		RegisteredClaims: i.registered(u.ID, AccessTokenTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
}

func (i *Issuer) IssueRefreshToken(u *models.User) (string, error) {
	claims := RefreshClaims{
		ID:               u.ID,
		RegisteredClaims: i.registered(u.ID, RefreshTokenTTL),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
}

// ParseAccessToken verifies signature and expiry. An expired token yields an
// error matching jwt.ErrTokenExpired.
func (i *Issuer) ParseAccessToken(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(token, &claims, i.accessSecret); err != nil {
		return nil, err
	}
	if claims.ID == 0 {
		return nil, fmt.Errorf("%w: missing id claim", jwt.ErrTokenInvalidClaims)
	}
	return &claims, nil
}

func (i *Issuer) ParseRefreshToken(token string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(token, &claims, i.refreshSecret); err != nil {
		return nil, err
	}
	if claims.ID == 0 {
		return nil, fmt.Errorf("%w: missing id claim", jwt.ErrTokenInvalidClaims)
	}
	return &claims, nil
}

func (i *Issuer) parse(token string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	return err
}

// ExpiresIn is the remaining validity of verified claims, never negative.
func (i *Issuer) ExpiresIn(claims *AccessClaims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(i.now())
	if d < 0 {
		return 0
	}
	return d
}

// WithClock returns a copy of the issuer reading time from now. Used to mint
// tokens relative to a fixed instant.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}
