package utils

import (
	"fmt"

	"gorm.io/gorm"
)

// UniqueSlug derives a slug from title that no row of model uses yet:
// "title", then "title-1", "title-2" and so on.
func UniqueSlug(db *gorm.DB, model interface{}, title string) (string, error) {
	base := Slugify(title)
	if base == "" {
		base = "untitled"
	}

	slug := base
	for i := 1; ; i++ {
		var count int64
		if err := db.Model(model).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}
