package stats

import (
	"github.com/Kyz7/blog/internal/response"
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Dashboard(c *fiber.Ctx) error {
	dashboard, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return response.Success(c, dashboard, "Dashboard statistics retrieved successfully")
}
