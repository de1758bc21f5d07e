package repositories

import (
	"fmt"
	"sort"
	"sync"

	"blog/internal/models"
)

// MockPostRepository is an in-memory implementation of PostRepository. It
// mirrors the GORM implementation's semantics (tag get-or-create, lenient
// category lookup, clear-then-reattach) closely enough for service tests.
type MockPostRepository struct {
	posts      map[uint]models.Post
	tags       map[string]models.Tag
	categories map[uint]models.Category
	nextPostID uint
	nextTagID  uint
	mu         sync.RWMutex
}

// NewMockPostRepository creates a new instance of MockPostRepository.
// The given categories play the role of seed data.
func NewMockPostRepository(categories ...models.Category) *MockPostRepository {
	r := &MockPostRepository{
		posts:      make(map[uint]models.Post),
		tags:       make(map[string]models.Tag),
		categories: make(map[uint]models.Category),
		nextPostID: 1,
		nextTagID:  1,
	}
	for _, c := range categories {
		r.categories[c.ID] = c
	}
	return r
}

func (r *MockPostRepository) resolveTags(names []string) []models.Tag {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag, ok := r.tags[name]
		if !ok {
			tag = models.Tag{ID: r.nextTagID, Name: name}
			r.nextTagID++
			r.tags[name] = tag
		}
		tags = append(tags, tag)
	}
	return tags
}

func (r *MockPostRepository) resolveCategory(categoryID *uint) (*uint, *models.Category) {
	if categoryID == nil {
		return nil, nil
	}
	category, ok := r.categories[*categoryID]
	if !ok {
		return nil, nil
	}
	return &category.ID, &category
}

// Create stores a new post with resolved associations.
func (r *MockPostRepository) Create(post *models.Post, tagNames []string, categoryID *uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	post.ID = r.nextPostID
	r.nextPostID++
	post.Tags = r.resolveTags(tagNames)
	post.CategoryID, post.Category = r.resolveCategory(categoryID)
	r.posts[post.ID] = *post
	return nil
}

// Update overwrites scalars and replaces the tag set and category.
func (r *MockPostRepository) Update(post *models.Post, tagNames []string, categoryID *uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.posts[post.ID]
	if !ok {
		return fmt.Errorf("post %d: %w", post.ID, models.ErrNotFound)
	}
	existing.Title = post.Title
	existing.Author = post.Author
	existing.Body = post.Body
	existing.Tags = r.resolveTags(tagNames)
	existing.CategoryID, existing.Category = r.resolveCategory(categoryID)
	r.posts[post.ID] = existing
	return nil
}

// Delete removes a post.
func (r *MockPostRepository) Delete(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return fmt.Errorf("post %d: %w", id, models.ErrNotFound)
	}
	delete(r.posts, id)
	return nil
}

// GetByID returns a stored post.
func (r *MockPostRepository) GetByID(id uint) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %d: %w", id, models.ErrNotFound)
	}
	return &post, nil
}

// List returns views of all posts, newest first.
func (r *MockPostRepository) List() ([]models.PostView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]models.PostView, 0, len(r.posts))
	for id := range r.posts {
		post := r.posts[id]
		views = append(views, ProjectPost(&post))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID > views[j].ID })
	return views, nil
}

// Count returns the number of stored posts.
func (r *MockPostRepository) Count() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.posts)), nil
}

// TagCount reports how many distinct tags exist; used by tests asserting
// that tag resolution is idempotent.
func (r *MockPostRepository) TagCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tags)
}
