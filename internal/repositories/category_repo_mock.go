package repositories

import (
	"sort"

	"blog/internal/models"
)

// MockCategoryRepository is an in-memory implementation of
// CategoryRepository backed by a MockPostRepository, so aggregate counts
// reflect the posts stored there.
type MockCategoryRepository struct {
	posts *MockPostRepository
}

// NewMockCategoryRepository creates a new instance of MockCategoryRepository.
func NewMockCategoryRepository(posts *MockPostRepository) *MockCategoryRepository {
	return &MockCategoryRepository{
		posts: posts,
	}
}

// List returns the seeded categories ordered by name ascending.
func (r *MockCategoryRepository) List() ([]models.Category, error) {
	r.posts.mu.RLock()
	defer r.posts.mu.RUnlock()

	categories := make([]models.Category, 0, len(r.posts.categories))
	for _, c := range r.posts.categories {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// AggregateByCategory counts stored posts per category, including
// zero-post categories.
func (r *MockCategoryRepository) AggregateByCategory() ([]models.CategoryCount, error) {
	r.posts.mu.RLock()
	defer r.posts.mu.RUnlock()

	byID := make(map[uint]int64)
	for _, post := range r.posts.posts {
		if post.CategoryID != nil {
			byID[*post.CategoryID]++
		}
	}
	counts := make([]models.CategoryCount, 0, len(r.posts.categories))
	for id, c := range r.posts.categories {
		counts = append(counts, models.CategoryCount{Name: c.Name, PostsCount: byID[id]})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Name < counts[j].Name })
	return counts, nil
}
