package models

import (
	"time"
)

// RevokedToken is an access token invalidated before its natural expiry.
// Rows are hard deleted by the sweeper once ExpiresAt has passed.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"type:text;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}
