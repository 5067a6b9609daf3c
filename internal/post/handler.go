package post

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/auth"
	"github.com/Kyz7/blog/internal/response"
	"github.com/Kyz7/blog/internal/utils"
	"github.com/gofiber/fiber/v2"
)

const imageField = "featuredImage"

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *fiber.Ctx) error {
	page := utils.ParsePage(c)
	filter := ListFilter{
		Category:      c.Query("category"),
		Tag:           c.Query("tag"),
		IncludeDrafts: auth.IdentityFrom(c) != nil,
	}

	posts, total, err := h.service.List(c.UserContext(), filter, page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, posts, response.CalculateMeta(page.Page, page.Limit, total), "Posts retrieved successfully")
}

func (h *Handler) Search(c *fiber.Ctx) error {
	page := utils.ParsePage(c)
	posts, total, err := h.service.Search(c.UserContext(), c.Query("q"), auth.IdentityFrom(c) != nil, page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, posts, response.CalculateMeta(page.Page, page.Limit, total), "Search results")
}

func (h *Handler) ByCategory(c *fiber.Ctx) error {
	page := utils.ParsePage(c)
	category, posts, total, err := h.service.ByCategory(c.UserContext(), c.Params("slug"), page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, posts, response.CalculateMeta(page.Page, page.Limit, total),
		fmt.Sprintf("Posts in category %s", category.Name))
}

func (h *Handler) ByTag(c *fiber.Ctx) error {
	page := utils.ParsePage(c)
	tag, posts, total, err := h.service.ByTag(c.UserContext(), c.Params("slug"), page)
	if err != nil {
		return err
	}
	return response.SuccessWithMeta(c, posts, response.CalculateMeta(page.Page, page.Limit, total),
		fmt.Sprintf("Posts tagged %s", tag.Name))
}

func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	post, err := h.service.Get(c.UserContext(), id, auth.IdentityFrom(c) != nil)
	if err != nil {
		return err
	}
	return response.Success(c, post, "Post retrieved successfully")
}

func (h *Handler) Create(c *fiber.Ctx) error {
	identity := auth.IdentityFrom(c)
	if identity == nil {
		return apperror.Unauthenticated("", "Not authenticated")
	}
	in, image, err := parseInput(c)
	if err != nil {
		return err
	}

	post, err := h.service.Create(c.UserContext(), identity.ID, in, image)
	if err != nil {
		return err
	}
	return response.Created(c, post, "Post created successfully")
}

func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	in, image, err := parseInput(c)
	if err != nil {
		return err
	}

	post, err := h.service.Update(c.UserContext(), id, in, image)
	if err != nil {
		return err
	}
	return response.Success(c, post, "Post updated successfully")
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := utils.ParamID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return response.Success(c, nil, "Post deleted successfully")
}

// parseInput accepts either a JSON body or a multipart form carrying an
// optional featuredImage file. Unknown fields are rejected in both cases.
func parseInput(c *fiber.Ctx) (Input, *multipart.FileHeader, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		var in Input
		if err := utils.ParseStrictJSON(c, &in); err != nil {
			return Input{}, nil, err
		}
		return in, nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return Input{}, nil, apperror.Validation("Invalid multipart form", err.Error())
	}
	in, err := inputFromForm(form.Value)
	if err != nil {
		return Input{}, nil, err
	}

	var image *multipart.FileHeader
	for name, files := range form.File {
		if name != imageField {
			return Input{}, nil, apperror.Validation("Unexpected file field", map[string]string{name: "not allowed"})
		}
		if len(files) > 0 {
			image = files[0]
		}
	}
	return in, image, nil
}

func inputFromForm(values map[string][]string) (Input, error) {
	var in Input
	errs := map[string]string{}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		v := vals[0]
		switch key {
		case "title":
			in.Title = &v
		case "content":
			in.Content = &v
		case "categoryId":
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				errs[key] = "must be a number"
				continue
			}
			categoryID := uint(id)
			in.CategoryID = &categoryID
		case "tags":
			ids, err := parseTagIDs(vals)
			if err != nil {
				errs[key] = "must be a list of numbers"
				continue
			}
			in.Tags = &ids
		case "published":
			published, err := strconv.ParseBool(v)
			if err != nil {
				errs[key] = "must be true or false"
				continue
			}
			in.Published = &published
		case "meta":
			if err := json.Unmarshal([]byte(v), &in.Meta); err != nil {
				errs[key] = "must be a JSON object"
			}
		default:
			errs[key] = "unknown field"
		}
	}
	if len(errs) > 0 {
		return Input{}, apperror.Validation("Invalid form fields", errs)
	}
	return in, nil
}

// parseTagIDs accepts repeated fields, comma separated values or a JSON array.
func parseTagIDs(vals []string) ([]uint, error) {
	ids := []uint{}
	if len(vals) == 1 && strings.HasPrefix(strings.TrimSpace(vals[0]), "[") {
		if err := json.Unmarshal([]byte(vals[0]), &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, err
			}
			ids = append(ids, uint(id))
		}
	}
	return ids, nil
}
