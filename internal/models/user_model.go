package models

import (
	"time"
)

type Role string

const (
	RoleAuthor Role = "AUTHOR"
	RoleAdmin  Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleAuthor || r == RoleAdmin
}

type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Email          string    `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password       string    `gorm:"size:255;not null" json:"-"`
	Name           string    `gorm:"size:100" json:"name"`
	SearchableName string    `gorm:"size:100;index" json:"-"`
	Role           Role      `gorm:"size:20;default:'AUTHOR';not null" json:"role"`
	Active         bool      `gorm:"default:true;not null" json:"active"`
	ProfileImage   *string   `gorm:"size:500" json:"profileImage,omitempty"`
	RefreshToken   *string   `gorm:"type:text" json:"-"`
	PostsCount     int64     `gorm:"-:migration;->" json:"postsCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserProfile is the projection of a user that is safe to return to clients.
type UserProfile struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	ProfileImage *string   `json:"profileImage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Active:       u.Active,
		ProfileImage: u.ProfileImage,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
