package auth

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/response"
	"github.com/Kyz7/blog/internal/revocation"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

const (
	identityKey = "identity"
	userIDKey   = "user_id"

	// RefreshHorizon is how close to expiry a valid access token must be
	// before a replacement is issued alongside the response.
	RefreshHorizon = 5 * time.Minute

	RefreshTokenHeader = "x-refresh-token"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	ID    uint
	Email string
	Role  models.Role

	// Token is the access token that authorizes the session from here on: the
	// presented one, or its replacement when the request recovered from expiry.
	Token     string
	ExpiresAt time.Time
	Refreshed bool

	// Renewed is a replacement issued alongside a still valid Token. Logout
	// revokes both.
	Renewed          string
	RenewedExpiresAt time.Time
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

func IdentityFrom(c *fiber.Ctx) *Identity {
	identity, _ := c.Locals(identityKey).(*Identity)
	return identity
}

func SetIdentity(c *fiber.Ctx, identity *Identity) {
	c.Locals(identityKey, identity)
	c.Locals(userIDKey, identity.ID)
}

type Middleware struct {
	service     *Service
	revocations *revocation.Store
}

func NewMiddleware(service *Service, revocations *revocation.Store) *Middleware {
	return &Middleware{service: service, revocations: revocations}
}

// Authenticate rejects requests without a usable session. A token close to
// expiry is renewed on the side; an expired one is recovered with the caller's
// refresh token. Either way the renewed token rides on the response envelope.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return apperror.Unauthenticated(apperror.CodeUnauthorized, "Token not provided")
		}

		revoked, err := m.revocations.IsRevoked(c.UserContext(), token)
		if err != nil {
			return apperror.Internal("Failed to check token revocation", err)
		}
		if revoked {
			return apperror.Unauthenticated(apperror.CodeRevoked, "Token has been revoked")
		}

		claims, err := m.service.issuer.ParseAccessToken(token)
		switch {
		case err == nil:
			identity := identityFromClaims(claims, token)
			if renewed := m.refreshNearExpiry(c, claims); renewed != "" {
				identity.Renewed = renewed
				identity.RenewedExpiresAt = m.service.accessExpiry()
			}
			SetIdentity(c, identity)
		case errors.Is(err, jwt.ErrTokenExpired):
			identity, err := m.recoverExpired(c)
			if err != nil {
				return err
			}
			SetIdentity(c, identity)
		default:
			return apperror.Unauthenticated(apperror.CodeUnauthorized, "Not authenticated")
		}

		return c.Next()
	}
}

// OptionalAuth attaches an identity when a valid, unrevoked access token is
// present and otherwise lets the request through anonymously.
func (m *Middleware) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Next()
		}

		claims, err := m.service.issuer.ParseAccessToken(token)
		if err != nil {
			return c.Next()
		}
		revoked, err := m.revocations.IsRevoked(c.UserContext(), token)
		if err != nil {
			log.Warnf("⚠️  Revocation check failed, continuing anonymously: %v", err)
			return c.Next()
		}
		if !revoked {
			SetIdentity(c, identityFromClaims(claims, token))
		}
		return c.Next()
	}
}

// RequireRole must run after Authenticate. It only inspects request state.
func RequireRole(allowed ...models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := IdentityFrom(c)
		if identity == nil {
			return apperror.Unauthenticated(apperror.CodeUnauthorized, "Not authenticated")
		}
		for _, role := range allowed {
			if identity.Role == role {
				return c.Next()
			}
		}
		return apperror.Forbidden("You don't have permission to access this resource")
	}
}

// refreshNearExpiry never fails the request; problems are logged and skipped.
// It returns the staged token, or "" when nothing was issued.
func (m *Middleware) refreshNearExpiry(c *fiber.Ctx, claims *AccessClaims) string {
	if m.service.issuer.ExpiresIn(claims) >= RefreshHorizon {
		return ""
	}

	token, ok, err := m.service.silentRefresh(c.UserContext(), claims.ID)
	if err != nil {
		log.Warnf("⚠️  Silent token refresh failed for user %d: %v", claims.ID, err)
		return ""
	}
	if !ok || !response.StageTokenRefresh(c, token, int(AccessTokenTTL.Seconds())) {
		return ""
	}
	return token
}

func (m *Middleware) recoverExpired(c *fiber.Ctx) (*Identity, error) {
	refreshToken := c.Get(RefreshTokenHeader)
	if refreshToken == "" {
		refreshToken = refreshTokenFromBody(c)
	}
	if refreshToken == "" {
		return nil, apperror.Unauthenticated(apperror.CodeTokenExpired, "Access token expired")
	}

	user, accessToken, err := m.service.renewSession(c.UserContext(), refreshToken)
	if errors.Is(err, errInvalidRefresh) {
		return nil, apperror.Unauthenticated(apperror.CodeSessionExpired, "Session expired, please log in again")
	}
	if err != nil {
		return nil, err
	}

	response.StageTokenRefresh(c, accessToken, int(AccessTokenTTL.Seconds()))
	return &Identity{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Token:     accessToken,
		ExpiresAt: m.service.accessExpiry(),
		Refreshed: true,
	}, nil
}

func identityFromClaims(claims *AccessClaims, token string) *Identity {
	return &Identity{
		ID:        claims.ID,
		Email:     claims.Email,
		Role:      claims.Role,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func refreshTokenFromBody(c *fiber.Ctx) string {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		return ""
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return ""
	}
	return body.RefreshToken
}
