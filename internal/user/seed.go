package user

import (
	"context"

	"github.com/Kyz7/blog/internal/models"
	log "github.com/sirupsen/logrus"
)

// SeedAdmin creates the first ADMIN account when ADMIN_EMAIL is configured and
// no user with that email exists yet.
func (s *Service) SeedAdmin(ctx context.Context, email, password, name string) error {
	if email == "" {
		log.Info("⏭️  ADMIN_EMAIL not set, skipping admin seed")
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if _, err := s.Create(ctx, CreateInput{
		Email:    email,
		Name:     name,
		Password: password,
		Role:     models.RoleAdmin,
	}); err != nil {
		return err
	}
	log.Infof("✅ Admin account %s seeded", email)
	return nil
}
