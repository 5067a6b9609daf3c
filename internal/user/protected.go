package user

import (
	"strings"

	"github.com/Kyz7/blog/internal/apperror"
	"github.com/Kyz7/blog/internal/models"
)

// ProtectedAccounts is the configured set of accounts no admin may update,
// deactivate or delete through the API.
type ProtectedAccounts struct {
	emails map[string]struct{}
}

func NewProtectedAccounts(emails []string) ProtectedAccounts {
	p := ProtectedAccounts{emails: make(map[string]struct{}, len(emails))}
	for _, email := range emails {
		if email = normalizeEmail(email); email != "" {
			p.emails[email] = struct{}{}
		}
	}
	return p
}

func (p ProtectedAccounts) Contains(email string) bool {
	_, ok := p.emails[normalizeEmail(email)]
	return ok
}

// Guard returns Forbidden when u is protected.
func (p ProtectedAccounts) Guard(u *models.User) error {
	if p.Contains(u.Email) {
		return apperror.Forbidden("This account is protected and cannot be modified")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
