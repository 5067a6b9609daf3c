package post

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/storage"
	"github.com/Kyz7/blog/internal/utils"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Input carries create and update fields. On update, nil fields are left unchanged.
type Input struct {
	Title      *string                `json:"title"`
	Content    *string                `json:"content"`
	CategoryID *uint                  `json:"categoryId"`
	Tags       *[]uint                `json:"tags"`
	Published  *bool                  `json:"published"`
	Meta       map[string]interface{} `json:"meta"`
}

type ListFilter struct {
	Category      string
	Tag           string
	IncludeDrafts bool
}

type Service struct {
	db      *gorm.DB
	storage storage.Storage
}

func NewService(db *gorm.DB, store storage.Storage) *Service {
	return &Service{db: db, storage: store}
}

func withCommentsCount(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count")
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.Preload("Author").Preload("Category").Preload("Tags")
}

func (s *Service) paginate(ctx context.Context, scope func(*gorm.DB) *gorm.DB, page utils.Page) ([]models.Post, int64, error) {
	var total int64
	if err := scope(s.db.WithContext(ctx).Model(&models.Post{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	posts := []models.Post{}
	err := withRelations(withCommentsCount(scope(s.db.WithContext(ctx).Model(&models.Post{})))).
		Order("posts.created_at DESC, posts.id DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&posts).Error
	return posts, total, err
}

func (s *Service) List(ctx context.Context, filter ListFilter, page utils.Page) ([]models.Post, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if !filter.IncludeDrafts {
			db = db.Where("posts.published = ?", true)
		}
		if filter.Category != "" {
			db = db.Where("posts.category_id IN (?)",
				s.db.Model(&models.Category{}).Select("id").Where("slug = ?", filter.Category))
		}
		if filter.Tag != "" {
			db = db.Where("posts.id IN (?)", s.taggedWith(filter.Tag))
		}
		return db
	}
	return s.paginate(ctx, scope, page)
}

// Search matches the title or content case-insensitively, or the accent-folded title.
func (s *Service) Search(ctx context.Context, query string, includeDrafts bool, page utils.Page) ([]models.Post, int64, error) {
	term := utils.RemoveAccents(query)
	if term == "" {
		return nil, 0, apperror.Validation("Search query is required", map[string]string{"q": "q is required"})
	}
	pattern := "%" + term + "%"
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("(LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ? OR posts.searchable_title LIKE ?)",
			pattern, pattern, pattern)
		if !includeDrafts {
			db = db.Where("posts.published = ?", true)
		}
		return db
	}
	return s.paginate(ctx, scope, page)
}

func (s *Service) ByCategory(ctx context.Context, slug string, page utils.Page) (*models.Category, []models.Post, int64, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, 0, apperror.NotFound("Category")
		}
		return nil, nil, 0, err
	}
	posts, total, err := s.paginate(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.category_id = ? AND posts.published = ?", category.ID, true)
	}, page)
	return &category, posts, total, err
}

func (s *Service) ByTag(ctx context.Context, slug string, page utils.Page) (*models.Tag, []models.Post, int64, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, 0, apperror.NotFound("Tag")
		}
		return nil, nil, 0, err
	}
	posts, total, err := s.paginate(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.id IN (?) AND posts.published = ?", s.taggedWith(slug), true)
	}, page)
	return &tag, posts, total, err
}

func (s *Service) taggedWith(slug string) *gorm.DB {
	return s.db.Table("post_tags").
		Select("post_tags.post_id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("tags.slug = ?", slug)
}

// Get returns a post with its relations. Drafts and unapproved comments are
// only visible to authenticated callers.
func (s *Service) Get(ctx context.Context, id uint, includeDrafts bool) (*models.Post, error) {
	var post models.Post
	err := withRelations(s.db.WithContext(ctx)).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			if !includeDrafts {
				db = db.Where("is_approved = ?", true)
			}
			return db.Order("created_at DESC")
		}).
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("Post")
		}
		return nil, err
	}
	if !post.Published && !includeDrafts {
		return nil, apperror.Forbidden("This post is not published")
	}
	post.CommentsCount = int64(len(post.Comments))
	return &post, nil
}

// Owner returns the author of post id, for ownership checks.
func (s *Service) Owner(ctx context.Context, id uint) (uint, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Select("id", "author_id").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperror.NotFound("Post")
		}
		return 0, err
	}
	return post.AuthorID, nil
}

func (s *Service) Create(ctx context.Context, authorID uint, in Input, image *multipart.FileHeader) (*models.Post, error) {
	errs := map[string]string{}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		errs["title"] = "title is required"
	}
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		errs["content"] = "content is required"
	}
	if in.CategoryID == nil || *in.CategoryID == 0 {
		errs["categoryId"] = "categoryId is required"
	}
	if len(errs) > 0 {
		return nil, apperror.Validation("Title, content and category are required", errs)
	}

	imageURL, err := s.saveImage(ctx, image)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(*in.Title)
	post := models.Post{
		Title:           title,
		SearchableTitle: utils.RemoveAccents(title),
		Content:         utils.SanitizeHTML(*in.Content),
		AuthorID:        authorID,
		CategoryID:      *in.CategoryID,
		FeaturedImage:   imageURL,
	}
	if in.Published != nil {
		post.Published = *in.Published
	}
	if in.Meta != nil {
		post.Meta = datatypes.JSONMap(in.Meta)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCategory(tx, post.CategoryID); err != nil {
			return err
		}
		if in.Tags != nil {
			tags, err := loadTags(tx, *in.Tags)
			if err != nil {
				return err
			}
			post.Tags = tags
		}

		slug, err := utils.UniqueSlug(tx, &models.Post{}, title)
		if err != nil {
			return err
		}
		post.Slug = slug

		return tx.Omit("Tags.*").Create(&post).Error
	})
	if err != nil {
		s.discardImage(ctx, imageURL)
		return nil, err
	}
	return s.Get(ctx, post.ID, true)
}

func (s *Service) Update(ctx context.Context, id uint, in Input, image *multipart.FileHeader) (*models.Post, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, apperror.Validation("Validation failed", map[string]string{"title": "title cannot be empty"})
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return nil, apperror.Validation("Validation failed", map[string]string{"content": "content cannot be empty"})
	}

	imageURL, err := s.saveImage(ctx, image)
	if err != nil {
		return nil, err
	}

	var oldImage *string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("Post")
			}
			return err
		}

		updates := map[string]interface{}{}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title != post.Title {
				slug, err := utils.UniqueSlug(tx, &models.Post{}, title)
				if err != nil {
					return err
				}
				updates["title"] = title
				updates["slug"] = slug
				updates["searchable_title"] = utils.RemoveAccents(title)
			}
		}
		if in.Content != nil {
			updates["content"] = utils.SanitizeHTML(*in.Content)
		}
		if in.CategoryID != nil {
			if err := requireCategory(tx, *in.CategoryID); err != nil {
				return err
			}
			updates["category_id"] = *in.CategoryID
		}
		if in.Published != nil {
			updates["published"] = *in.Published
		}
		if in.Meta != nil {
			updates["meta"] = datatypes.JSONMap(in.Meta)
		}
		if imageURL != nil {
			oldImage = post.FeaturedImage
			updates["featured_image"] = *imageURL
		}

		if in.Tags != nil {
			tags, err := loadTags(tx, *in.Tags)
			if err != nil {
				return err
			}
			if err := tx.Model(&post).Omit("Tags.*").Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&post).Updates(updates).Error
	})
	if err != nil {
		s.discardImage(ctx, imageURL)
		return nil, err
	}

	s.discardImage(ctx, oldImage)
	return s.Get(ctx, id, true)
}

// Delete removes the post with its comments and tag links, then its featured image.
func (s *Service) Delete(ctx context.Context, id uint) error {
	var image *string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NotFound("Post")
			}
			return err
		}
		image = post.FeaturedImage

		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&post).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		return err
	}
	s.discardImage(ctx, image)
	return nil
}

func (s *Service) saveImage(ctx context.Context, image *multipart.FileHeader) (*string, error) {
	if image == nil {
		return nil, nil
	}
	if err := storage.ValidateImage(image); err != nil {
		return nil, err
	}
	url, err := s.storage.Save(ctx, image, storage.FeaturedDir)
	if err != nil {
		return nil, apperror.Internal("Failed to store featured image", err)
	}
	return &url, nil
}

func (s *Service) discardImage(ctx context.Context, url *string) {
	if url == nil || *url == "" {
		return
	}
	if err := s.storage.Delete(ctx, *url); err != nil {
		log.Warnf("⚠️  Failed to delete image %s: %v", *url, err)
	}
}

func requireCategory(tx *gorm.DB, id uint) error {
	var count int64
	if err := tx.Model(&models.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperror.NotFound("Category")
	}
	return nil
}

// loadTags returns the tags with the given ids, failing if any is unknown.
func loadTags(tx *gorm.DB, ids []uint) ([]models.Tag, error) {
	tags := []models.Tag{}
	if len(ids) == 0 {
		return tags, nil
	}
	unique := map[uint]struct{}{}
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	if err := tx.Where("id IN ?", ids).Find(&tags).Error; err != nil {
		return nil, err
	}
	if len(tags) != len(unique) {
		return nil, apperror.Validation("One or more tags are invalid", map[string]string{"tags": "unknown tag id"})
	}
	return tags, nil
}
