package repositories

import (
	"fmt"

	"blog/internal/models"

	"gorm.io/gorm"
)

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

// NewGORMCategoryRepository creates a new instance of GORMCategoryRepository.
func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{
		db: db,
	}
}

// List returns all categories ordered by name ascending.
func (r *GORMCategoryRepository) List() ([]models.Category, error) {
	var categories []models.Category
	if err := r.db.Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// AggregateByCategory counts posts per category. The left join keeps
// zero-post categories in the result with a zero count.
func (r *GORMCategoryRepository) AggregateByCategory() ([]models.CategoryCount, error) {
	var counts []models.CategoryCount
	err := r.db.Table("categories").
		Select("categories.name AS name, COUNT(posts.id) AS posts_count").
		Joins("LEFT JOIN posts ON posts.category_id = categories.id").
		Group("categories.id").
		Order("categories.name ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate posts by category: %w", err)
	}
	return counts, nil
}
