package auth

import (
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/response"
	"github.com/Kyz7/blog/internal/utils"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.ParseStrictJSON(c, &body); err != nil {
		return err
	}

	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	errs := map[string]string{}
	if body.Email == "" {
		errs["email"] = "email is required"
	} else if !utils.ValidEmail(body.Email) {
		errs["email"] = "email is invalid"
	}
	if body.Password == "" {
		errs["password"] = "password is required"
	}
	if len(errs) > 0 {
		return apperror.Validation("Validation failed", errs)
	}

	session, err := h.service.Login(c.UserContext(), body.Email, body.Password, bearerToken(c))
	if err != nil {
		return err
	}
	return response.Success(c, session, "Login successful")
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	identity := IdentityFrom(c)
	if identity == nil {
		return apperror.Unauthenticated(apperror.CodeUnauthorized, "Not authenticated")
	}
	if err := h.service.Logout(c.UserContext(), identity); err != nil {
		return err
	}
	return response.Success(c, nil, "Logged out successfully")
}

func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := utils.ParseStrictJSON(c, &body); err != nil {
		return err
	}
	if body.RefreshToken == "" {
		return apperror.Validation("Validation failed", map[string]string{
			"refreshToken": "refreshToken is required",
		})
	}

	accessToken, err := h.service.Refresh(c.UserContext(), body.RefreshToken)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{
		"accessToken": accessToken,
		"expiresIn":   int(AccessTokenTTL.Seconds()),
	}, "Token refreshed successfully")
}

func (h *Handler) CheckAuth(c *fiber.Ctx) error {
	identity := IdentityFrom(c)
	if identity == nil {
		return apperror.Unauthenticated(apperror.CodeUnauthorized, "Not authenticated")
	}
	profile, err := h.service.CheckAuth(c.UserContext(), identity.ID)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"user": profile}, "Authenticated")
}
