package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"blog/internal/handlers"
	"blog/internal/middleware"
	"blog/internal/models"
	"blog/internal/repositories"
	"blog/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupApp builds a Fiber app over a fresh in-memory SQLite database with
// the demo categories seeded. Each test gets its own database.
func setupApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Tag{}, &models.Post{}, &models.PostTag{}); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	categories := []models.Category{{Name: "Навчання"}, {Name: "Робота"}, {Name: "Особисте"}}
	if err := db.Create(&categories).Error; err != nil {
		t.Fatalf("failed to seed categories: %v", err)
	}

	userRepo := repositories.NewGORMUserRepository(db)
	postRepo := repositories.NewGORMPostRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)

	authService := services.NewAuthService(userRepo, "test_jwt_secret")
	postService := services.NewPostService(postRepo, categoryRepo, nil) // nil RabbitMQ client

	authHandler := handlers.NewAuthHandler(authService)
	postHandler := handlers.NewPostHandler(postService, "Блог-демо")

	app := fiber.New()
	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	postHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)
	postHandler.RegisterProtectedRoutes(protected)

	return app, db
}

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

// doJSON performs a JSON request against the app and decodes the response
// body into a map.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) != nil {
		// Non-object responses (e.g. arrays) are decoded by the caller.
		decoded = map[string]interface{}{"raw": string(raw)}
	}
	return resp.StatusCode, decoded
}

// registerAndLogin registers a fresh user and returns a session token.
func registerAndLogin(t *testing.T, app *fiber.App) string {
	t.Helper()

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":     "bogdan",
		"password":     "password123",
		"confirmation": "password123",
	})
	assert.Equal(t, http.StatusCreated, status)
	token, _ := body["token"].(string)
	assert.NotEmpty(t, token)
	return token
}

func TestAuthRegisterAndLogin(t *testing.T) {
	app, _ := setupApp(t)

	token := registerAndLogin(t, app)

	// The issued token resolves an identity
	status, body := doJSON(t, app, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bogdan", body["username"])

	// Registering the same username again fails regardless of password
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":     "bogdan",
		"password":     "other-password",
		"confirmation": "other-password",
	})
	assert.Equal(t, http.StatusConflict, status)

	// Confirmation mismatch
	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username":     "olena",
		"password":     "password123",
		"confirmation": "different",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// Login with the right and wrong password
	status, body = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "bogdan",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "bogdan",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestWriteRequiresIdentity(t *testing.T) {
	app, _ := setupApp(t)

	form := map[string]string{"title": "t", "author": "a", "body": "b"}
	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/posts", "", form)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/posts/1", "", form)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/posts/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// The read path stays public
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/posts", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCreateAndListPosts(t *testing.T) {
	app, db := setupApp(t)
	token := registerAndLogin(t, app)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/posts", token, models.PostForm{
		Title:      "Перший пост",
		Author:     "Bogdan",
		Body:       "Пост із бази даних",
		RawTags:    "Flask, Jinja",
		CategoryID: "1",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(1), body["id"])

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/posts", token, models.PostForm{
		Title:   "Другий пост",
		Author:  "Admin",
		Body:    "Blog service працює",
		RawTags: "Flask, Python",
	})
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, float64(2), body["id"])

	// Newest first, tags in encounter order, category resolved by name
	req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var views []models.PostView
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	assert.Len(t, views, 2)
	assert.Equal(t, uint(2), views[0].ID)
	assert.Equal(t, "Другий пост", views[0].Title)
	assert.Equal(t, "", views[0].CategoryName)
	assert.Equal(t, uint(1), views[1].ID)
	assert.Equal(t, []string{"Flask", "Jinja"}, views[1].TagNames)
	assert.Equal(t, "Навчання", views[1].CategoryName)

	// "Flask" resolved to the existing row the second time
	var tagCount int64
	assert.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(3), tagCount)

	// Edit-form prefill joins the tag names back together
	status, body = doJSON(t, app, http.MethodGet, "/api/v1/posts/1", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Flask, Jinja", body["tags"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/posts/99", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreatePostValidationEcho(t *testing.T) {
	app, db := setupApp(t)
	token := registerAndLogin(t, app)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/posts", token, models.PostForm{
		Title:   "",
		Author:  "X",
		Body:    "Y",
		RawTags: "dra, gons",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	// The submitted strings come back verbatim for redisplay
	echoed, ok := body["post"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "X", echoed["author"])
	assert.Equal(t, "dra, gons", echoed["tags"])

	// Nothing was persisted
	var postCount, tagCount int64
	assert.NoError(t, db.Model(&models.Post{}).Count(&postCount).Error)
	assert.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(0), postCount)
	assert.Equal(t, int64(0), tagCount)
}

func TestUpdatePostReplacesAssociations(t *testing.T) {
	app, db := setupApp(t)
	token := registerAndLogin(t, app)

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/posts", token, models.PostForm{
		Title: "original", Author: "a", Body: "b", RawTags: "go, web", CategoryID: "2",
	})
	assert.Equal(t, http.StatusCreated, status)

	// Validation failure with an empty tag string echoes the persisted tags
	status, body := doJSON(t, app, http.MethodPut, "/api/v1/posts/1", token, models.PostForm{
		Title: "", Author: "a", Body: "b",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	echoed := body["post"].(map[string]interface{})
	assert.Equal(t, "go, web", echoed["tags"])

	// Success: clear-then-reattach replaces the set, category cleared
	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/posts/1", token, models.PostForm{
		Title: "updated", Author: "a", Body: "b", RawTags: "news",
	})
	assert.Equal(t, http.StatusOK, status)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/posts/1", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "updated", body["title"])
	assert.Equal(t, "news", body["tags"])
	assert.Nil(t, body["category_id"])

	// The detached tags remain as rows; only the association went away
	var tagCount int64
	assert.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(3), tagCount)

	status, _ = doJSON(t, app, http.MethodPut, "/api/v1/posts/99", token, models.PostForm{
		Title: "t", Author: "a", Body: "b",
	})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDeletePostTwice(t *testing.T) {
	app, db := setupApp(t)
	token := registerAndLogin(t, app)

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/posts", token, models.PostForm{
		Title: "t", Author: "a", Body: "b", RawTags: "go",
	})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/posts/1", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/v1/posts/1", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Association rows are gone, the tag row is not garbage-collected
	var joinCount, tagCount int64
	assert.NoError(t, db.Table("post_tags").Count(&joinCount).Error)
	assert.NoError(t, db.Model(&models.Tag{}).Count(&tagCount).Error)
	assert.Equal(t, int64(0), joinCount)
	assert.Equal(t, int64(1), tagCount)
}

func TestAboutAggregate(t *testing.T) {
	app, _ := setupApp(t)
	token := registerAndLogin(t, app)

	for _, categoryID := range []string{"2", "2", ""} {
		status, _ := doJSON(t, app, http.MethodPost, "/api/v1/posts", token, models.PostForm{
			Title: "t", Author: "a", Body: "b", CategoryID: categoryID,
		})
		assert.Equal(t, http.StatusCreated, status)
	}

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/about", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Блог-демо", body["project"])
	assert.Equal(t, float64(3), body["posts_count"])

	categories, ok := body["categories"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, categories, 3)

	// Name ascending with zero-post categories included
	first := categories[0].(map[string]interface{})
	assert.Equal(t, "Навчання", first["name"])
	assert.Equal(t, float64(0), first["posts_count"])
	last := categories[2].(map[string]interface{})
	assert.Equal(t, "Робота", last["name"])
	assert.Equal(t, float64(2), last["posts_count"])
}

func TestListCategories(t *testing.T) {
	app, _ := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var categories []models.Category
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&categories))
	assert.Len(t, categories, 3)
	assert.Equal(t, "Навчання", categories[0].Name)
}
