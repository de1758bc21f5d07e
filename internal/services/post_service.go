package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode/utf8"

	"blog/internal/models"
	"blog/internal/repositories"
	"blog/pkg/rabbitmq"
)

// PostService handles business logic for posts: form validation, tag token
// parsing, and orchestration of the repository write.
type PostService struct {
	postRepo     repositories.PostRepository
	categoryRepo repositories.CategoryRepository
	mqClient     *rabbitmq.Client // may be nil; event publishing is best-effort
}

// NewPostService creates a new PostService.
func NewPostService(postRepo repositories.PostRepository, categoryRepo repositories.CategoryRepository, mqClient *rabbitmq.Client) *PostService {
	return &PostService{
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
		mqClient:     mqClient,
	}
}

// ParseTagNames splits a raw comma-separated tag string into trimmed,
// non-empty names. Duplicate tokens collapse to one occurrence keeping
// first-encounter order; resolving "a, a" twice would otherwise just be an
// idempotent no-op the second time, so the collapse changes nothing
// observable in the stored association set.
func ParseTagNames(raw string) []string {
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, token := range strings.Split(raw, ",") {
		name := strings.TrimSpace(token)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// validateForm trims the scalar fields in place and checks the required
// and length bounds. A failure reports the trimmed scalars plus the raw
// tag string verbatim so the form can be redisplayed.
func validateForm(form *models.PostForm) *models.ValidationError {
	form.Title = strings.TrimSpace(form.Title)
	form.Author = strings.TrimSpace(form.Author)
	form.Body = strings.TrimSpace(form.Body)

	// Bounds are characters, not bytes; Cyrillic input must not hit the
	// limit at half length.
	switch {
	case form.Title == "" || form.Author == "" || form.Body == "":
		return &models.ValidationError{Reason: "title, author and body are required", Form: *form}
	case utf8.RuneCountInString(form.Title) > 200:
		return &models.ValidationError{Reason: "title must be at most 200 characters", Form: *form}
	case utf8.RuneCountInString(form.Author) > 80:
		return &models.ValidationError{Reason: "author must be at most 80 characters", Form: *form}
	}
	for _, name := range ParseTagNames(form.RawTags) {
		if utf8.RuneCountInString(name) > 50 {
			return &models.ValidationError{Reason: fmt.Sprintf("tag %q must be at most 50 characters", name), Form: *form}
		}
	}
	return nil
}

// parseCategoryID resolves the submitted category id string leniently: an
// empty or unparseable value means "no category" rather than an error.
func parseCategoryID(raw string) *uint {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	categoryID := uint(id)
	return &categoryID
}

// CreatePost validates the form and persists a new post with its
// associations in one transaction. Returns the new post's id.
func (s *PostService) CreatePost(identity models.Identity, form models.PostForm) (uint, error) {
	if verr := validateForm(&form); verr != nil {
		return 0, verr
	}

	post := &models.Post{
		Title:  form.Title,
		Author: form.Author,
		Body:   form.Body,
	}
	if err := s.postRepo.Create(post, ParseTagNames(form.RawTags), parseCategoryID(form.CategoryID)); err != nil {
		return 0, err
	}

	s.publishEvent("post.created", post.ID, post.Title, identity)
	return post.ID, nil
}

// UpdatePost validates the form and overwrites the post identified by id,
// replacing its whole tag set and category reference. On a validation
// failure with an empty submitted raw tag string, the echoed form falls
// back to the post's currently persisted tag names, so a partially typed
// edit is preserved over stale state only when something was typed.
func (s *PostService) UpdatePost(identity models.Identity, id uint, form models.PostForm) error {
	existing, err := s.postRepo.GetByID(id)
	if err != nil {
		return err
	}

	if verr := validateForm(&form); verr != nil {
		if strings.TrimSpace(form.RawTags) == "" {
			verr.Form.RawTags = joinTagNames(existing.Tags)
		}
		return verr
	}

	post := &models.Post{
		ID:     id,
		Title:  form.Title,
		Author: form.Author,
		Body:   form.Body,
	}
	if err := s.postRepo.Update(post, ParseTagNames(form.RawTags), parseCategoryID(form.CategoryID)); err != nil {
		return err
	}

	s.publishEvent("post.updated", id, form.Title, identity)
	return nil
}

// DeletePost removes a post and its association rows; deleting the same id
// twice yields models.ErrNotFound the second time.
func (s *PostService) DeletePost(identity models.Identity, id uint) error {
	if err := s.postRepo.Delete(id); err != nil {
		return err
	}
	s.publishEvent("post.deleted", id, "", identity)
	return nil
}

// ListPosts returns all posts, newest first.
func (s *PostService) ListPosts() ([]models.PostView, error) {
	return s.postRepo.List()
}

// GetPost returns the edit-form prefill projection for one post.
func (s *PostService) GetPost(id uint) (*models.PostDetail, error) {
	post, err := s.postRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	return &models.PostDetail{
		ID:         post.ID,
		Title:      post.Title,
		Author:     post.Author,
		Body:       post.Body,
		RawTags:    joinTagNames(post.Tags),
		CategoryID: post.CategoryID,
	}, nil
}

// ListCategories returns all categories for the form dropdown, ordered by
// name.
func (s *PostService) ListCategories() ([]models.Category, error) {
	return s.categoryRepo.List()
}

// About returns the aggregate view: total post count plus per-category
// counts ordered by category name, zero-post categories included.
func (s *PostService) About() (int64, []models.CategoryCount, error) {
	total, err := s.postRepo.Count()
	if err != nil {
		return 0, nil, err
	}
	counts, err := s.categoryRepo.AggregateByCategory()
	if err != nil {
		return 0, nil, err
	}
	return total, counts, nil
}

// publishEvent emits a post lifecycle event. Publishing is best-effort: a
// missing client or a broker failure never fails the write.
func (s *PostService) publishEvent(event string, postID uint, title string, identity models.Identity) {
	if s.mqClient == nil {
		return
	}
	if err := s.mqClient.PublishPostEvent(event, postID, title, identity.Username); err != nil {
		log.Printf("Warning: failed to publish %s event for post %d: %v", event, postID, err)
	}
}

func joinTagNames(tags []models.Tag) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return strings.Join(names, ", ")
}
