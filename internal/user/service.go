package user

import (
	"context"
	"errors"
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/models"
	"github.com/Kyz7/blog/internal/utils"
	"gorm.io/gorm"
)

const passwordPolicy = "password must be 8+ characters with uppercase, lowercase, digit and symbol"

type CreateInput struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// UpdateInput fields left nil are not changed.
type UpdateInput struct {
	Email    *string      `json:"email"`
	Name     *string      `json:"name"`
	Password *string      `json:"password"`
	Role     *models.Role `json:"role"`
}

type Service struct {
	db              *gorm.DB
	protected       ProtectedAccounts
	defaultPassword string
}

func NewService(db *gorm.DB, protected ProtectedAccounts, defaultPassword string) *Service {
	return &Service{db: db, protected: protected, defaultPassword: defaultPassword}
}

func (s *Service) withPostsCount(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("users.*, (SELECT COUNT(*) FROM posts WHERE posts.author_id = users.id) AS posts_count")
}

func (s *Service) List(ctx context.Context, page utils.Page) ([]models.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	users := []models.User{}
	err := s.withPostsCount(ctx).
		Order("users.created_at DESC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&users).Error
	return users, total, err
}

// Search matches the accent-folded name or the email, case-insensitively.
func (s *Service) Search(ctx context.Context, query string, page utils.Page) ([]models.User, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, apperror.Validation("Search query is required", map[string]string{"q": "q is required"})
	}
	pattern := "%" + utils.RemoveAccents(query) + "%"
	filter := func(db *gorm.DB) *gorm.DB {
		return db.Where("users.searchable_name LIKE ? OR LOWER(users.email) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := filter(s.db.WithContext(ctx).Model(&models.User{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	users := []models.User{}
	err := filter(s.withPostsCount(ctx)).
		Order("users.name ASC").
		Offset(page.Offset()).Limit(page.Limit).
		Find(&users).Error
	return users, total, err
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.withPostsCount(ctx).Where("users.id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("User")
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Password == "" {
		in.Password = s.defaultPassword
	}
	if in.Role == "" {
		in.Role = models.RoleAuthor
	}

	errs := map[string]string{}
	if in.Email == "" {
		errs["email"] = "email is required"
	} else if !utils.ValidEmail(in.Email) {
		errs["email"] = "email is invalid"
	}
	if in.Name == "" {
		errs["name"] = "name is required"
	}
	if !utils.StrongPassword(in.Password) {
		errs["password"] = passwordPolicy
	}
	if !in.Role.Valid() {
		errs["role"] = "role must be AUTHOR or ADMIN"
	}
	if len(errs) > 0 {
		return nil, apperror.Validation("Validation failed", errs)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("Failed to hash password", err)
	}

	u := models.User{
		Email:          in.Email,
		Name:           in.Name,
		SearchableName: utils.RemoveAccents(in.Name),
		Password:       hash,
		Role:           in.Role,
		Active:         true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperror.Conflict("User with this email already exists")
		}
		return tx.Create(&u).Error
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) Update(ctx context.Context, id uint, in UpdateInput) (*models.User, error) {
	updates := map[string]interface{}{}
	errs := map[string]string{}

	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if !utils.ValidEmail(email) {
			errs["email"] = "email is invalid"
		}
		updates["email"] = email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			errs["name"] = "name cannot be empty"
		}
		updates["name"] = name
		updates["searchable_name"] = utils.RemoveAccents(name)
	}
	if in.Password != nil {
		if !utils.StrongPassword(*in.Password) {
			errs["password"] = passwordPolicy
		} else {
			hash, err := utils.HashPassword(*in.Password)
			if err != nil {
				return nil, apperror.Internal("Failed to hash password", err)
			}
			updates["password"] = hash
		}
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			errs["role"] = "role must be AUTHOR or ADMIN"
		}
		updates["role"] = *in.Role
	}
	if len(errs) > 0 {
		return nil, apperror.Validation("Validation failed", errs)
	}
	if len(updates) == 0 {
		return nil, apperror.Validation("No fields to update", nil)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if err := s.protected.Guard(existing); err != nil {
			return err
		}
		if email, ok := updates["email"]; ok {
			var count int64
			if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return apperror.Conflict("Email already taken")
			}
		}
		return tx.Model(existing).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Deactivate disables the account and ends its session.
func (s *Service) Deactivate(ctx context.Context, actorID, id uint) (*models.User, error) {
	if actorID == id {
		return nil, apperror.Validation("You cannot deactivate your own account", nil)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if err := s.protected.Guard(existing); err != nil {
			return err
		}
		return tx.Model(existing).Updates(map[string]interface{}{
			"active":        false,
			"refresh_token": nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes the user. Posts and revoked tokens go with it through the
// foreign key cascades.
func (s *Service) Delete(ctx context.Context, actorID, id uint) (*models.User, error) {
	if actorID == id {
		return nil, apperror.Validation("You cannot delete your own account", nil)
	}
	var deleted *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.load(tx, id)
		if err != nil {
			return err
		}
		if err := s.protected.Guard(existing); err != nil {
			return err
		}
		deleted = existing
		return tx.Delete(existing).Error
	})
	return deleted, err
}

func (s *Service) load(tx *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := tx.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("User")
		}
		return nil, err
	}
	return &u, nil
}
