package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pasar/internal/auth"
	"pasar/internal/config"
	"pasar/internal/handlers"
	"pasar/internal/middleware"
	"pasar/internal/models"
	"pasar/internal/repositories"
	"pasar/internal/services"
	"pasar/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	authority, err := auth.NewAuthority(cfg.WebTokenSecret, cfg.MobileTokenSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to initialize token authority: %v", err)
	}

	// --- Initialize Repositories ---
	// With a DSN configured the app runs against Postgres; without one it
	// falls back to in-memory repositories, which is enough for local runs.
	var (
		userRepo    repositories.UserRepository
		productRepo repositories.ProductRepository
		orderRepo   repositories.OrderRepository
	)
	if cfg.DatabaseDSN != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		userRepo = repositories.NewGORMUserRepository(db)
		productRepo = repositories.NewGORMProductRepository(db)
		orderRepo = repositories.NewGORMOrderRepository(db)
	} else {
		log.Println("DATABASE_DSN not set, using in-memory repositories")
		userRepo = repositories.NewMockUserRepository()
		mockProducts := repositories.NewMockProductRepository()
		seedProducts(mockProducts)
		productRepo = mockProducts
		orderRepo = repositories.NewMockOrderRepository()
	}

	// --- Initialize RabbitMQ Client ---
	// Event publishing is best-effort, so a missing broker degrades to no
	// events instead of refusing to start.
	var publisher services.EventPublisher
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
	if err != nil {
		log.Printf("Warning: RabbitMQ unavailable, order events disabled: %v", err)
	} else {
		defer mqClient.Close()
		publisher = mqClient
	}

	// --- Initialize Services ---
	authService := services.NewAuthService(userRepo, authority, nil)
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, userRepo, publisher)

	app := buildApp(authService, productService, orderService)

	// --- Start RabbitMQ Consumer in a Goroutine ---
	if mqClient != nil {
		go func() {
			log.Println("Starting RabbitMQ consumer for order events...")
			messageHandler := func(msg amqp.Delivery) error {
				log.Printf("Received %s event (Tag: %d): %s", msg.Type, msg.DeliveryTag, string(msg.Body))
				return nil
			}
			if consumerErr := mqClient.ConsumeOrderEvents(messageHandler); consumerErr != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", consumerErr)
			}
		}()
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

// buildApp wires the middleware, routes and health endpoint into a Fiber app.
func buildApp(authService *services.AuthService, productService *services.ProductService, orderService *services.OrderService) *fiber.App {
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)

	app := fiber.New()
	app.Use(logger.New()) // Request logger

	authRequired := middleware.AuthRequired(authService)
	adminOnly := middleware.AdminOnly()

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	userHandler.RegisterRoutes(apiV1, authRequired, adminOnly)
	productHandler.RegisterRoutes(apiV1, authRequired, adminOnly)
	orderHandler.RegisterRoutes(apiV1, authRequired, adminOnly)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return app
}

// seedProducts populates the in-memory product repository with some initial
// data for local runs.
func seedProducts(repo repositories.ProductRepository) {
	products := []models.Product{
		{Name: "Laptop", Description: "High performance laptop", Price: 1200.00, Stock: 10, Category: "electronics"},
		{Name: "Keyboard", Description: "Mechanical keyboard", Price: 75.00, Stock: 25, Category: "electronics"},
		{Name: "Mouse", Description: "Ergonomic wireless mouse", Price: 25.00, Stock: 50, Category: "electronics"},
	}

	for i := range products {
		if err := repo.Create(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Name, err)
		} else {
			log.Printf("Seeded product: %s (ID: %s)", products[i].Name, products[i].ID)
		}
	}
}
