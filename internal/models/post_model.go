package models

import (
	"time"

	"gorm.io/datatypes"
)

const DefaultCategorySlug = "uncategorized"

type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug      string    `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Post struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	Title           string            `gorm:"size:255;not null" json:"title"`
	Slug            string            `gorm:"size:280;uniqueIndex;not null" json:"slug"`
	SearchableTitle string            `gorm:"size:255;index" json:"-"`
	Content         string            `gorm:"type:text;not null" json:"content"`
	FeaturedImage   *string           `gorm:"size:500" json:"featuredImage"`
	Published       bool              `gorm:"default:false;index" json:"published"`
	Meta            datatypes.JSONMap `json:"meta,omitempty"`
	AuthorID        uint              `gorm:"index;not null" json:"authorId"`
	Author          *Author           `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	CategoryID      uint              `gorm:"index;not null" json:"categoryId"`
	Category        *Category         `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Tags            []Tag             `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags"`
	Comments        []Comment         `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	CommentsCount   int64             `gorm:"-:migration;->" json:"commentsCount,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Author is the public view of a post's author, read from the users table.
type Author struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	ProfileImage *string `json:"profileImage,omitempty"`
}

func (Author) TableName() string {
	return "users"
}

type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PostID       uint      `gorm:"index;not null" json:"postId"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	VisitorName  string    `gorm:"size:100;not null" json:"visitorName"`
	VisitorEmail string    `gorm:"size:100;not null" json:"visitorEmail,omitempty"`
	IsApproved   bool      `gorm:"default:false;index" json:"isApproved"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
