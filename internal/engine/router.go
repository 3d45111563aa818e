package engine

import "github.com/gofiber/fiber/v2"

// RegisterPluckRoutes wires the pruning API under /api with the given middleware.
func RegisterPluckRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api", middleware...)
	api.Post("/:entity/pluck", h.PluckList)
	api.Post("/:entity/:id/pluck", h.PluckByID)
	api.Get("/:entity/:id/pluck", h.PluckFields)
}

// RegisterCacheRoutes wires the cache invalidation endpoint. It is registered
// separately so the host can guard it with stricter middleware.
func RegisterCacheRoutes(app *fiber.App, h *Handler, middleware ...fiber.Handler) {
	api := app.Group("/api/cache", middleware...)
	api.Post("/invalidate/:tag", h.InvalidateTag)
}
