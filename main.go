package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/viper"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"blog/internal/handlers"
	"blog/internal/middleware"
	"blog/internal/models"
	"blog/internal/repositories"
	"blog/internal/services"
	"blog/pkg/rabbitmq"
)

// NewApp builds the fully wired Fiber application from viper
// configuration. Tests call it directly to get an app without the process
// lifecycle. The returned RabbitMQ client is nil when no broker is
// configured; the caller owns closing it.
func NewApp() (*fiber.App, *services.AuthService, *rabbitmq.Client, error) {
	viper.SetDefault("APP_PORT", ":8080")
	viper.SetDefault("DATABASE_DSN", "blog.db")
	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("RABBITMQ_URL", "")
	viper.SetDefault("PROJECT_NAME", "Блог-демо")
	viper.SetDefault("SEED_DB", true)
	viper.AutomaticEnv()

	db, err := openDatabase(viper.GetString("DATABASE_DSN"))
	if err != nil {
		return nil, nil, nil, err
	}

	if err := db.AutoMigrate(&models.User{}, &models.Category{}, &models.Tag{}, &models.Post{}, &models.PostTag{}); err != nil {
		return nil, nil, nil, err
	}

	// RabbitMQ is optional; without a URL post events are simply not
	// published.
	var mqClient *rabbitmq.Client
	if url := viper.GetString("RABBITMQ_URL"); url != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: url})
		if err != nil {
			return nil, nil, nil, err
		}
	}

	userRepo := repositories.NewGORMUserRepository(db)
	postRepo := repositories.NewGORMPostRepository(db)
	categoryRepo := repositories.NewGORMCategoryRepository(db)

	authService := services.NewAuthService(userRepo, viper.GetString("JWT_SECRET"))
	postService := services.NewPostService(postRepo, categoryRepo, mqClient)

	if viper.GetBool("SEED_DB") {
		seedBlog(db, postRepo)
	}

	authHandler := handlers.NewAuthHandler(authService)
	postHandler := handlers.NewPostHandler(postService, viper.GetString("PROJECT_NAME"))

	app := fiber.New()
	app.Use(logger.New())

	apiV1 := app.Group("/api/v1")

	// Public routes: registration, login, and the whole read path.
	authHandler.RegisterRoutes(apiV1)
	postHandler.RegisterRoutes(apiV1)

	// Write operations require a resolved identity.
	protected := apiV1.Group("", middleware.AuthRequired(authService))
	authHandler.RegisterProtectedRoutes(protected)
	postHandler.RegisterProtectedRoutes(protected)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return app, authService, mqClient, nil
}

// openDatabase picks the GORM driver from the DSN shape: anything that
// looks like a PostgreSQL DSN uses the postgres driver, everything else is
// treated as a SQLite path.
func openDatabase(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
}

// seedBlog populates an empty database with the demo categories, tags and
// posts. A database that already has posts is left alone.
func seedBlog(db *gorm.DB, postRepo repositories.PostRepository) {
	count, err := postRepo.Count()
	if err != nil {
		log.Printf("Error checking post count before seeding: %v", err)
		return
	}
	if count > 0 {
		return
	}

	categories := []models.Category{
		{Name: "Навчання"},
		{Name: "Робота"},
		{Name: "Особисте"},
	}
	for i := range categories {
		if err := db.FirstOrCreate(&categories[i], models.Category{Name: categories[i].Name}).Error; err != nil {
			log.Printf("Error seeding category %s: %v", categories[i].Name, err)
			return
		}
	}

	posts := []struct {
		post       models.Post
		tagNames   []string
		categoryID *uint
	}{
		{
			post:       models.Post{Title: "Перший пост", Author: "Bogdan", Body: "Пост із бази даних"},
			tagNames:   []string{"Flask", "Jinja"},
			categoryID: &categories[0].ID,
		},
		{
			post:       models.Post{Title: "Другий пост", Author: "Admin", Body: "Blog service працює"},
			tagNames:   []string{"Python"},
			categoryID: &categories[1].ID,
		},
	}
	for i := range posts {
		if err := postRepo.Create(&posts[i].post, posts[i].tagNames, posts[i].categoryID); err != nil {
			log.Printf("Error seeding post %s: %v", posts[i].post.Title, err)
		} else {
			log.Printf("Seeded post: %s (ID: %d)", posts[i].post.Title, posts[i].post.ID)
		}
	}
}

func main() {
	app, _, mqClient, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Log post events back out when a broker is configured.
	if mqClient != nil {
		defer mqClient.Close()

		go func() {
			log.Println("Starting RabbitMQ consumer for post events...")
			handler := func(msg amqp.Delivery) error {
				log.Printf("Received post event (tag: %d): %s", msg.DeliveryTag, string(msg.Body))
				return nil
			}
			if consumerErr := mqClient.ConsumePostEvents(handler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	appPort := viper.GetString("APP_PORT")
	log.Printf("Starting server on port %s", appPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(appPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}
