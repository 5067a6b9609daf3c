package middleware

import (
	"context"
	"strconv"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/auth"
	"github.com/gofiber/fiber/v2"
)

// OwnerLookup returns the id of the user that owns the resource with the given id.
// It should return a NotFound error when the resource does not exist.
type OwnerLookup func(ctx context.Context, id uint) (uint, error)

// OwnerOrAdmin lets ADMIN through and otherwise requires the caller to own the
// resource named by the route parameter param. Must run after authentication.
func OwnerOrAdmin(param string, lookup OwnerLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := auth.IdentityFrom(c)
		if identity == nil {
			return apperror.Unauthenticated(apperror.CodeUnauthorized, "Not authenticated")
		}

		id, err := strconv.ParseUint(c.Params(param), 10, 64)
		if err != nil || id == 0 {
			return apperror.Validation("Invalid "+param, nil)
		}

		ownerID, err := lookup(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		if identity.IsAdmin() || ownerID == identity.ID {
			return c.Next()
		}
		return apperror.Forbidden("You can only modify your own resources")
	}
}
