package category

import (
	"fmt"

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
	categories, total, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, categories, response.CalculateMeta(page.Page, page.Limit, total), "Categories retrieved successfully")
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperror.Validation("Invalid request body", err.Error())
	}

	category, err := h.service.Create(c.UserContext(), body.Name, body.Description)
	if err != nil {
		return err
	}
	return response.Created(c, category, "Category created successfully")
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	name, moved, err := h.service.Delete(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, fiber.Map{"reassignedPosts": moved},
		fmt.Sprintf("Category %q deleted, %d posts reassigned", name, moved))
}
