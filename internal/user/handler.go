package user

import (
	"fmt"

	"github.com/Kyz7/blog/internal/auth"
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
	users, total, err := h.service.List(c.UserContext(), page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, users, response.CalculateMeta(page.Page, page.Limit, total), "Users retrieved successfully")
}

func (h *Handler) Search(c *fiber.Ctx) error {
	page := utils.ParsePage(c)
	users, total, err := h.service.Search(c.UserContext(), c.Query("q"), page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, users, response.CalculateMeta(page.Page, page.Limit, total), "Search results")
}

func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, u, "User retrieved successfully")
}

func (h *Handler) Create(c *fiber.Ctx) error {
	var body CreateInput
	if err := utils.ParseStrictJSON(c, &body); err != nil {
		return err
	}
	u, err := h.service.Create(c.UserContext(), body)
	if err != nil {
		return err
	}
	return response.Created(c, u.Profile(), "User created successfully")
}

func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	var body UpdateInput
	if err := utils.ParseStrictJSON(c, &body); err != nil {
		return err
	}
	u, err := h.service.Update(c.UserContext(), id, body)
	if err != nil {
		return err
	}
	return response.Success(c, u, "User updated successfully")
}

func (h *Handler) Deactivate(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.service.Deactivate(c.UserContext(), auth.IdentityFrom(c).ID, id)
	if err != nil {
		return err
	}
	return response.Success(c, u, "User deactivated successfully")
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.service.Delete(c.UserContext(), auth.IdentityFrom(c).ID, id)
	if err != nil {
		return err
	}
	return response.Success(c, nil, fmt.Sprintf("User %s (%s) deleted", u.Name, u.Role))
}
