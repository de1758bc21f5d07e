package repositories

import (
	"errors"
	"fmt"

	"blog/internal/models"

	"gorm.io/gorm"
)

// GORMPostRepository is a GORM implementation of PostRepository. It
// maintains the post_tags association rows explicitly so the tag order
// resolved from the submitted string survives into the read path.
type GORMPostRepository struct {
	db *gorm.DB
}

// NewGORMPostRepository creates a new instance of GORMPostRepository.
func NewGORMPostRepository(db *gorm.DB) *GORMPostRepository {
	return &GORMPostRepository{
		db: db,
	}
}

// resolveTags maps names to persisted tags inside tx, creating the ones
// that do not exist yet. Lookup first, insert on miss; if the insert loses
// a race to a concurrent request the uniqueness constraint fires and we
// fall back to a second lookup. A row still invisible after that (the other
// transaction has not committed into our snapshot) surfaces as ErrConflict.
func resolveTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		var tag models.Tag
		err := tx.First(&tag, "name = ?", name).Error
		if err == nil {
			tags = append(tags, tag)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to look up tag %q: %w", name, err)
		}
		tag = models.Tag{Name: name}
		if err := tx.Create(&tag).Error; err != nil {
			if !isUniqueViolation(err) {
				return nil, fmt.Errorf("failed to create tag %q: %w", name, err)
			}
			if err := tx.First(&tag, "name = ?", name).Error; err != nil {
				return nil, fmt.Errorf("tag %q: %w", name, models.ErrConflict)
			}
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// resolveCategory is the lenient lookup: a nil id or an id matching no row
// both mean "no category", never an error.
func resolveCategory(tx *gorm.DB, categoryID *uint) (*uint, error) {
	if categoryID == nil {
		return nil, nil
	}
	var category models.Category
	if err := tx.First(&category, *categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up category %d: %w", *categoryID, err)
	}
	return &category.ID, nil
}

// replaceTagRows is the clear-then-reattach: every association row of the
// post is removed and the new set inserted with its resolution order.
func replaceTagRows(tx *gorm.DB, postID uint, tags []models.Tag) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return fmt.Errorf("failed to clear tags for post %d: %w", postID, err)
	}
	for i := range tags {
		row := models.PostTag{PostID: postID, TagID: tags[i].ID, Position: i}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to attach tag %q to post %d: %w", tags[i].Name, postID, err)
		}
	}
	return nil
}

// loadTags returns a post's tags in stored association order.
func loadTags(tx *gorm.DB, postID uint) ([]models.Tag, error) {
	var tags []models.Tag
	err := tx.Model(&models.Tag{}).
		Joins("JOIN post_tags ON post_tags.tag_id = tags.id").
		Where("post_tags.post_id = ?", postID).
		Order("post_tags.position").
		Find(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load tags for post %d: %w", postID, err)
	}
	return tags, nil
}

// Create persists the post with its tag and category associations in one
// transaction.
func (r *GORMPostRepository) Create(post *models.Post, tagNames []string, categoryID *uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		tags, err := resolveTags(tx, tagNames)
		if err != nil {
			return err
		}
		resolved, err := resolveCategory(tx, categoryID)
		if err != nil {
			return err
		}
		post.CategoryID = resolved
		if err := tx.Create(post).Error; err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}
		if err := replaceTagRows(tx, post.ID, tags); err != nil {
			return err
		}
		post.Tags = tags
		return nil
	})
}

// Update overwrites the scalar fields, replaces the whole tag set, and
// re-points the category, all in one transaction.
func (r *GORMPostRepository) Update(post *models.Post, tagNames []string, categoryID *uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Post
		if err := tx.First(&existing, post.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("post %d: %w", post.ID, models.ErrNotFound)
			}
			return fmt.Errorf("failed to load post %d: %w", post.ID, err)
		}
		tags, err := resolveTags(tx, tagNames)
		if err != nil {
			return err
		}
		resolved, err := resolveCategory(tx, categoryID)
		if err != nil {
			return err
		}
		// Updates with a map so a nil category clears the column.
		updates := map[string]interface{}{
			"title":       post.Title,
			"author":      post.Author,
			"body":        post.Body,
			"category_id": resolved,
		}
		if err := tx.Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update post %d: %w", post.ID, err)
		}
		return replaceTagRows(tx, post.ID, tags)
	})
}

// Delete removes the post and its association rows. Tag and category rows
// are left untouched.
func (r *GORMPostRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("post %d: %w", id, models.ErrNotFound)
			}
			return fmt.Errorf("failed to load post %d: %w", id, err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
			return fmt.Errorf("failed to clear tags for post %d: %w", id, err)
		}
		if err := tx.Delete(&post).Error; err != nil {
			return fmt.Errorf("failed to delete post %d: %w", id, err)
		}
		return nil
	})
}

// GetByID returns a post with its tags (in association order) and category
// loaded.
func (r *GORMPostRepository) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.Preload("Category").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("post %d: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get post by ID %d: %w", id, err)
	}
	tags, err := loadTags(r.db, id)
	if err != nil {
		return nil, err
	}
	post.Tags = tags
	return &post, nil
}

// List returns all posts projected to views, newest first. Tags are
// gathered in one query and grouped per post in association order.
func (r *GORMPostRepository) List() ([]models.PostView, error) {
	var posts []models.Post
	err := r.db.
		Preload("Category").
		Order("posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	type tagRow struct {
		PostID uint
		ID     uint
		Name   string
	}
	var rows []tagRow
	err = r.db.Table("post_tags").
		Select("post_tags.post_id AS post_id, tags.id AS id, tags.name AS name").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Order("post_tags.post_id, post_tags.position").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load post tags: %w", err)
	}
	tagsByPost := make(map[uint][]models.Tag)
	for _, row := range rows {
		tagsByPost[row.PostID] = append(tagsByPost[row.PostID], models.Tag{ID: row.ID, Name: row.Name})
	}

	views := make([]models.PostView, 0, len(posts))
	for i := range posts {
		posts[i].Tags = tagsByPost[posts[i].ID]
		views = append(views, ProjectPost(&posts[i]))
	}
	return views, nil
}

// Count returns the total number of posts.
func (r *GORMPostRepository) Count() (int64, error) {
	var count int64
	if err := r.db.Model(&models.Post{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// ProjectPost flattens a post into its read-model view.
func ProjectPost(post *models.Post) models.PostView {
	tagNames := make([]string, 0, len(post.Tags))
	for _, tag := range post.Tags {
		tagNames = append(tagNames, tag.Name)
	}
	categoryName := ""
	if post.Category != nil {
		categoryName = post.Category.Name
	}
	return models.PostView{
		ID:           post.ID,
		Title:        post.Title,
		Author:       post.Author,
		Body:         post.Body,
		TagNames:     tagNames,
		CategoryName: categoryName,
	}
}
