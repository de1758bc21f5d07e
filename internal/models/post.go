package models

import "time"

// Category groups posts. Categories are seed data only; there is no
// endpoint that creates them.
type Category struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;type:varchar(80);not null"`
}

// Tag is a free-form label shared across posts. Tags are created implicitly
// the first time a post references an unknown name (get-or-create, exact
// case-sensitive match).
type Tag struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;type:varchar(50);not null"`
}

// Post is a blog entry. The surrogate key is monotonically assigned, so
// ordering by ID descending is creation-order descending.
//
// No soft delete: deleting a post removes the row and its association rows
// outright, while tag and category rows are never garbage-collected.
type Post struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Title      string    `json:"title" gorm:"type:varchar(200);not null"`
	Author     string    `json:"author" gorm:"type:varchar(80);not null"`
	Body       string    `json:"body" gorm:"type:text;not null"`
	CategoryID *uint     `json:"category_id"`
	Category   *Category `json:"category,omitempty"`
	Tags       []Tag     `json:"tags,omitempty" gorm:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostTag is one row of the posts↔tags association table. The repository
// maintains these rows explicitly; Position records the order in which the
// tag names were resolved from the submitted string, so the rendered order
// is exact even when a post mixes pre-existing and new tags.
type PostTag struct {
	PostID   uint `gorm:"primaryKey"`
	TagID    uint `gorm:"primaryKey"`
	Position int  `gorm:"not null"`
}

// PostForm carries the raw strings of a post submission exactly as the
// client sent them. On a validation failure the same struct travels back to
// the caller so the form can be redisplayed without losing input.
type PostForm struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	RawTags    string `json:"tags"`
	CategoryID string `json:"category_id"`
}

// PostView is the read-model projection consumed by the rendering layer.
type PostView struct {
	ID           uint     `json:"id"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	Body         string   `json:"body"`
	TagNames     []string `json:"tags"`
	CategoryName string   `json:"category_name"`
}

// PostDetail is the edit-form prefill projection: scalar fields plus the
// tag names joined back into one comma-separated string.
type PostDetail struct {
	ID         uint   `json:"id"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Body       string `json:"body"`
	RawTags    string `json:"tags"`
	CategoryID *uint  `json:"category_id"`
}

// CategoryCount is one row of the per-category post aggregate. Categories
// with zero posts are included with a zero count.
type CategoryCount struct {
	Name       string `json:"name"`
	PostsCount int64  `json:"posts_count"`
}
