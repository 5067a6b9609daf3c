package comment

import (
	"context"
	"errors"
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/utils"
	"gorm.io/gorm"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type CreateInput struct {
	Content      string `json:"content"`
	VisitorName  string `json:"visitorName"`
	VisitorEmail string `json:"visitorEmail"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create adds an unapproved visitor comment to a published post.
func (s *Service) Create(ctx context.Context, postID uint, in CreateInput) (*models.Comment, error) {
	in.Content = utils.StripTags(in.Content)
	in.VisitorName = utils.StripTags(in.VisitorName)
	in.VisitorEmail = strings.ToLower(strings.TrimSpace(in.VisitorEmail))

	errs := map[string]string{}
	if in.Content == "" {
		errs["content"] = "content is required"
	}
	if in.VisitorName == "" {
		errs["visitorName"] = "visitorName is required"
	}
	if !utils.ValidEmail(in.VisitorEmail) {
		errs["visitorEmail"] = "visitorEmail is invalid"
	}
	if len(errs) > 0 {
		return nil, apperror.Validation("Validation failed", errs)
	}

	post, err := s.post(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.Published {
		return nil, apperror.Forbidden("Cannot comment on an unpublished post")
	}

	c := models.Comment{
		PostID:       post.ID,
		Content:      in.Content,
		VisitorName:  in.VisitorName,
		VisitorEmail: in.VisitorEmail,
	}
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) List(ctx context.Context, postID uint, approvedOnly bool, page utils.Page) ([]models.Comment, int64, error) {
	if _, err := s.post(ctx, postID); err != nil {
		return nil, 0, err
	}

	query := s.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID)
	if approvedOnly {
		query = query.Where("is_approved = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	comments := []models.Comment{}
	err := query.Order("created_at DESC").Offset(page.Offset()).Limit(page.Limit).Find(&comments).Error
	return comments, total, err
}

func (s *Service) Moderate(ctx context.Context, postID, commentID uint, action string) (*models.Comment, error) {
	if action != ActionApprove && action != ActionReject {
		return nil, apperror.Validation("Validation failed", map[string]string{
			"action": "action must be approve or reject",
		})
	}

	c, err := s.comment(ctx, postID, commentID)
	if err != nil {
		return nil, err
	}
	approved := action == ActionApprove
	if err := s.db.WithContext(ctx).Model(c).Update("is_approved", approved).Error; err != nil {
		return nil, err
	}
	c.IsApproved = approved
	return c, nil
}

func (s *Service) Delete(ctx context.Context, postID, commentID uint) error {
	c, err := s.comment(ctx, postID, commentID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(c).Error
}

func (s *Service) post(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if err := s.db.WithContext(ctx).Select("id", "published").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Post")
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) comment(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	var c models.Comment
	err := s.db.WithContext(ctx).Where("id = ? AND post_id = ?", commentID, postID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Comment")
		}
		return nil, err
	}
	return &c, nil
}
