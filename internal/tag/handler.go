package tag

import (
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

func (h *Handler) List(c *fiber.Ctx) error {
	page := utils.ParsePage(c)
	tags, total, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, tags, response.CalculateMeta(page.Page, page.Limit, total), "Tags retrieved successfully")
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperror.Validation("Invalid request body", err.Error())
	}

	tag, err := h.service.Create(c.UserContext(), body.Name)
	if err != nil {
		return err
	}
	return response.Created(c, tag, "Tag created successfully")
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return response.Success(c, nil, "Tag deleted successfully")
}
