package utils

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/gofiber/fiber/v2"
)

// ParseStrictJSON decodes the request body into v and rejects unknown fields.
func ParseStrictJSON(c *fiber.Ctx, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.Validation("Invalid request body", err.Error())
	}
	return nil
}

// ParamID reads a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.Validation("Invalid "+name, nil)
	}
	return uint(id), nil
}
