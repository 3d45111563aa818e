package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"pluck-backend/internal/auth"
	"pluck-backend/internal/cache"
	"pluck-backend/internal/config"
	"pluck-backend/internal/engine"
	"pluck-backend/internal/metadata"
	"pluck-backend/internal/prune"
	"pluck-backend/internal/store"
)

func main() {
	ctx := context.Background()

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s:%d/%s)", cfg.Server.Port, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Create registry and load metadata
	reg := metadata.NewRegistry()
	if err := metadata.LoadAll(ctx, db.Pool, reg); err != nil {
		log.Printf("WARN: Failed to load metadata: %v", err)
	}

	// 5. Create the projection cache backend
	cacheBackend := newCache(ctx, cfg.Cache)

	// 6. Create the pruner
	pruner := prune.New(cacheBackend)

	// 7. Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 8. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 9. Auth routes (before middleware, no auth required)
	tokens := auth.NewTokenConfig(cfg.Auth.Secret, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	authHandler := auth.NewAuthHandler(db, tokens)
	auth.RegisterAuthRoutes(app, authHandler)

	// 10. Auth middleware for all protected routes
	authMW := auth.AuthMiddleware(tokens)
	adminMW := auth.RequireAdmin()

	// 11. Register pluck routes (auth required); cache invalidation is
	// admin-only since it evicts shared state.
	handler := engine.NewHandler(db, reg, pruner, cacheBackend)
	engine.RegisterPluckRoutes(app, handler, authMW)
	engine.RegisterCacheRoutes(app, handler, authMW, adminMW)

	// 12. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

// newCache picks the cache backend from config. A failed Redis connection
// falls back to the in-process cache rather than refusing to start.
func newCache(ctx context.Context, cfg config.CacheConfig) cache.Cache {
	switch cfg.Driver {
	case "redis":
		c, err := cache.NewRedis(ctx, cfg.Addr, cfg.Password, cfg.DB, cfg.TTL())
		if err != nil {
			log.Printf("WARN: Redis cache unavailable (%v), using in-memory cache", err)
			return cache.NewMemory(cfg.TTL())
		}
		log.Printf("Redis cache connected (%s)", cfg.Addr)
		return c
	default:
		return cache.NewMemory(cfg.TTL())
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(engine.ErrorResponse{
		Error: &engine.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}
