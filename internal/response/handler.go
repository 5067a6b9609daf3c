package response

import (
	"errors"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

const tokenRefreshKey = "token_refresh"

type StandardResponse struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message,omitempty"`
	Data         interface{}   `json:"data,omitempty"`
	Error        *ErrorDetail  `json:"error,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	TokenRefresh *TokenRefresh `json:"tokenRefresh,omitempty"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// TokenRefresh carries an access token renewed silently while serving the request.
type TokenRefresh struct {
	NewAccessToken string `json:"newAccessToken"`
	ExpiresIn      int    `json:"expiresIn"`
}

// StageTokenRefresh records a renewed access token to be merged into whatever
// envelope the request eventually sends. Only the first staged value is kept.
func StageTokenRefresh(c *fiber.Ctx, token string, expiresIn int) bool {
	if PendingTokenRefresh(c) != nil {
		return false
	}
	c.Locals(tokenRefreshKey, &TokenRefresh{NewAccessToken: token, ExpiresIn: expiresIn})
	return true
}

func PendingTokenRefresh(c *fiber.Ctx) *TokenRefresh {
	tr, _ := c.Locals(tokenRefreshKey).(*TokenRefresh)
	return tr
}

// send is the single assembly point for every JSON envelope.
func send(c *fiber.Ctx, status int, body StandardResponse) error {
	body.TokenRefresh = PendingTokenRefresh(c)
	return c.Status(status).JSON(body)
}

func Success(c *fiber.Ctx, data interface{}, message string) error {
	return send(c, fiber.StatusOK, StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func SuccessWithMeta(c *fiber.Ctx, data interface{}, meta *Meta, message string) error {
	return send(c, fiber.StatusOK, StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

func Created(c *fiber.Ctx, data interface{}, message string) error {
	return send(c, fiber.StatusCreated, StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func Error(c *fiber.Ctx, statusCode int, errorCode string, message string, details interface{}) error {
	return send(c, statusCode, StandardResponse{
		Success: false,
		Error: &ErrorDetail{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
	})
}

func BadRequest(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, "BAD_REQUEST", message, details)
}

func NotFound(c *fiber.Ctx, resource string) error {
	return Error(c, fiber.StatusNotFound, apperror.CodeNotFound, resource+" not found", nil)
}

func CalculateMeta(page, limit int, total int64) *Meta {
	totalPages := total / int64(limit)
	if total%int64(limit) > 0 {
		totalPages++
	}

	return &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// ErrorHandler renders every error returned by handlers and middleware.
// Unrecognized errors are logged in full; production builds only expose a generic message.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := "HTTP_ERROR"
			switch fe.Code {
			case fiber.StatusNotFound:
				code = apperror.CodeNotFound
			case fiber.StatusTooManyRequests:
				code = "TOO_MANY_REQUESTS"
			case fiber.StatusRequestEntityTooLarge:
				code = "PAYLOAD_TOO_LARGE"
			}
			return Error(c, fe.Code, code, fe.Message, nil)
		}

		appErr := apperror.From(err)
		if appErr.Kind == apperror.KindInternal {
			log.Errorf("❌ %s %s: %v", c.Method(), c.OriginalURL(), err)
			if production {
				return Error(c, appErr.Status(), appErr.Code, "Internal server error", nil)
			}
			return Error(c, appErr.Status(), appErr.Code, appErr.Message, err.Error())
		}
		return Error(c, appErr.Status(), appErr.Code, appErr.Message, appErr.Details)
	}
}
