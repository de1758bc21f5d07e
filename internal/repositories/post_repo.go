package repositories

import "blog/internal/models"

// PostRepository defines the interface for post data access. Create and
// Update own the whole write: tag get-or-create resolution, category
// lookup, and association maintenance happen inside one transaction.
type PostRepository interface {
	// List returns read-model projections of all posts, newest first
	// (descending surrogate key).
	List() ([]models.PostView, error)

	// GetByID returns a post with its tags and category loaded, or
	// models.ErrNotFound.
	GetByID(id uint) (*models.Post, error)

	// Create persists post together with its tag and category
	// associations. tagNames are resolved by exact name, creating missing
	// tags; categoryID is resolved leniently (nil or a missing row means
	// no category). post.ID is set on success.
	Create(post *models.Post, tagNames []string, categoryID *uint) error

	// Update overwrites the scalar fields of the post identified by
	// post.ID, fully replaces its tag set with the resolution of tagNames
	// (clear-then-reattach), and re-points or clears the category.
	Update(post *models.Post, tagNames []string, categoryID *uint) error

	// Delete removes the post and its association rows; tag and category
	// rows stay. A missing id yields models.ErrNotFound.
	Delete(id uint) error

	// Count returns the total number of posts.
	Count() (int64, error)
}

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	// List returns all categories ordered by name ascending.
	List() ([]models.Category, error)

	// AggregateByCategory returns the post count per category ordered by
	// name ascending, including zero-post categories.
	AggregateByCategory() ([]models.CategoryCount, error)
}
