package handlers

import (
	"errors"
	"log"
	"strconv"

	"blog/internal/middleware"
	"blog/internal/models"
	"blog/internal/services"

	"github.com/gofiber/fiber/v2"
)

// PostHandler handles HTTP requests for posts and the about aggregate.
type PostHandler struct {
	service *services.PostService
	project string // project name shown on the about page
}

// NewPostHandler creates a new PostHandler.
func NewPostHandler(service *services.PostService, project string) *PostHandler {
	return &PostHandler{
		service: service,
		project: project,
	}
}

// RegisterRoutes registers the public read routes.
func (h *PostHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/posts", h.HandleListPosts)
	router.Get("/posts/:id", h.HandleGetPost)
	router.Get("/categories", h.HandleListCategories)
	router.Get("/about", h.HandleAbout)
}

// RegisterProtectedRoutes registers the write routes; the caller wraps the
// router with the auth middleware.
func (h *PostHandler) RegisterProtectedRoutes(router fiber.Router) {
	router.Post("/posts", h.HandleCreatePost)
	router.Put("/posts/:id", h.HandleUpdatePost)
	router.Delete("/posts/:id", h.HandleDeletePost)
}

// HandleListPosts returns all posts, newest first.
func (h *PostHandler) HandleListPosts(c *fiber.Ctx) error {
	posts, err := h.service.ListPosts()
	if err != nil {
		log.Printf("Error listing posts: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve posts",
		})
	}
	return c.JSON(posts)
}

// HandleGetPost returns one post in its edit-form prefill shape.
func (h *PostHandler) HandleGetPost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid post id",
		})
	}
	post, err := h.service.GetPost(id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Post not found",
			})
		}
		log.Printf("Error getting post %d: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve post",
		})
	}
	return c.JSON(post)
}

// HandleListCategories returns the categories for the form dropdown.
func (h *PostHandler) HandleListCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories()
	if err != nil {
		log.Printf("Error listing categories: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve categories",
		})
	}
	return c.JSON(categories)
}

// HandleAbout returns the project name, total post count, and the
// per-category post counts.
func (h *PostHandler) HandleAbout(c *fiber.Ctx) error {
	total, categories, err := h.service.About()
	if err != nil {
		log.Printf("Error building about view: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not build about view",
		})
	}
	return c.JSON(fiber.Map{
		"project":     h.project,
		"posts_count": total,
		"categories":  categories,
	})
}

// HandleCreatePost creates a new post from the submitted form strings.
func (h *PostHandler) HandleCreatePost(c *fiber.Ctx) error {
	var form models.PostForm
	if err := c.BodyParser(&form); err != nil {
		log.Printf("Error parsing post form: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	identity := middleware.CurrentIdentity(c)
	id, err := h.service.CreatePost(*identity, form)
	if err != nil {
		return h.writeError(c, err, 0)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Post created successfully",
		"id":      id,
	})
}

// HandleUpdatePost overwrites an existing post.
func (h *PostHandler) HandleUpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid post id",
		})
	}

	var form models.PostForm
	if err := c.BodyParser(&form); err != nil {
		log.Printf("Error parsing post form: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	identity := middleware.CurrentIdentity(c)
	if err := h.service.UpdatePost(*identity, id, form); err != nil {
		return h.writeError(c, err, id)
	}

	return c.JSON(fiber.Map{
		"message": "Post updated successfully",
		"id":      id,
	})
}

// HandleDeletePost removes a post.
func (h *PostHandler) HandleDeletePost(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid post id",
		})
	}

	identity := middleware.CurrentIdentity(c)
	if err := h.service.DeletePost(*identity, id); err != nil {
		return h.writeError(c, err, id)
	}

	return c.JSON(fiber.Map{
		"message": "Post deleted successfully",
		"id":      id,
	})
}

// writeError maps the service error taxonomy to HTTP outcomes. A
// validation failure echoes the submitted form so the client can
// redisplay it without losing input.
func (h *PostHandler) writeError(c *fiber.Ctx, err error, id uint) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": verr.Reason,
			"post":    verr.Form,
		})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Post not found",
		})
	case errors.Is(err, models.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message": "Conflicting concurrent write, please retry",
		})
	}
	log.Printf("Error writing post %d: %v", id, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "Could not save post",
	})
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
