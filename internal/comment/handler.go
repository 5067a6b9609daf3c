package comment

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

func (h *Handler) Create(c *fiber.Ctx) error {
	postID, err := utils.ParamID(c, "postId")
	if err != nil {
		return err
	}
	var body CreateInput
	if err := c.BodyParser(&body); err != nil {
		return apperror.Validation("Invalid request body", err.Error())
	}

	comment, err := h.service.Create(c.UserContext(), postID, body)
	if err != nil {
		return err
	}
	return response.Created(c, comment, "Comment added, awaiting moderation")
}

func (h *Handler) List(c *fiber.Ctx) error {
	postID, err := utils.ParamID(c, "postId")
	if err != nil {
		return err
	}
	page := utils.ParsePage(c)
	approvedOnly := c.Query("approvedOnly", "true") != "false"

	comments, total, err := h.service.List(c.UserContext(), postID, approvedOnly, page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, comments, response.CalculateMeta(page.Page, page.Limit, total), "Comments retrieved successfully")
}

func (h *Handler) Moderate(c *fiber.Ctx) error {
	postID, err := utils.ParamID(c, "postId")
	if err != nil {
		return err
	}
	commentID, err := utils.ParamID(c, "commentId")
	if err != nil {
		return err
	}
	var body struct {
		Action string `json:"action"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperror.Validation("Invalid request body", err.Error())
	}

	comment, err := h.service.Moderate(c.UserContext(), postID, commentID, body.Action)
	if err != nil {
		return err
	}
	message := "Comment rejected"
	if comment.IsApproved {
		message = "Comment approved"
	}
	return response.Success(c, comment, message)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	postID, err := utils.ParamID(c, "postId")
	if err != nil {
		return err
	}
	commentID, err := utils.ParamID(c, "commentId")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), postID, commentID); err != nil {
		return err
	}
	return response.Success(c, nil, "Comment deleted successfully")
}
