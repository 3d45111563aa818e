package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pluck-backend/internal/cache"
	"pluck-backend/internal/metadata"
	"pluck-backend/internal/prune"
	"pluck-backend/internal/store"
)

type Handler struct {
	store    *store.Store
	registry *metadata.Registry
	pruner   *prune.Pruner
	cache    cache.Cache // nil when memoization is disabled
}

func NewHandler(s *store.Store, reg *metadata.Registry, pruner *prune.Pruner, c cache.Cache) *Handler {
	return &Handler{store: s, registry: reg, pruner: pruner, cache: c}
}

type pluckRequest struct {
	Definition any `json:"definition"`
}

// PluckList handles POST /api/:entity/pluck. The definition's top-level
// directives ($limit, $offset, $sort, $where, $filter) modify the entity
// query before materialization.
func (h *Handler) PluckList(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	var body pluckRequest
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	q := NewEntityQuery(c.Context(), h.store.Pool, h.registry, entity)
	data := h.pruner.PruneQuery(c.Context(), q, body.Definition)

	return c.JSON(fiber.Map{"data": data})
}

// PluckByID handles POST /api/:entity/:id/pluck.
func (h *Handler) PluckByID(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	var body pluckRequest
	if err := c.BodyParser(&body); err != nil {
		return NewAppError("INVALID_PAYLOAD", 400, "Invalid JSON body")
	}

	return h.pluckRecord(c, entity, c.Params("id"), body.Definition)
}

// PluckFields handles GET /api/:entity/:id/pluck?fields=title,body, the
// comma-list shorthand for flat field selection.
func (h *Handler) PluckFields(c *fiber.Ctx) error {
	entity, err := h.resolveEntity(c)
	if err != nil {
		return err
	}

	fields := splitAndTrim(c.Query("fields"))
	if len(fields) == 0 {
		return NewAppError("INVALID_PAYLOAD", 400, "Missing fields parameter")
	}

	return h.pluckRecord(c, entity, c.Params("id"), fields)
}

func (h *Handler) pluckRecord(c *fiber.Ctx, entity *metadata.Entity, id string, definition any) error {
	row, err := fetchRecord(c.Context(), h.store.Pool, entity, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NotFoundError(entity.Name, id)
		}
		return fmt.Errorf("fetch %s/%s: %w", entity.Name, id, err)
	}

	record := NewRowRecord(c.Context(), h.store.Pool, h.registry, entity, row)
	result, err := h.pruner.PruneObject(c.Context(), record, definition)
	if err != nil {
		return NewAppError("NOT_A_RECORD", 422, err.Error())
	}

	return c.JSON(fiber.Map{"data": result})
}

// InvalidateTag handles POST /api/cache/invalidate/:tag, the external
// eviction signal for cached projections. Tags are record identities in
// the form type:id.
func (h *Handler) InvalidateTag(c *fiber.Ctx) error {
	if h.cache == nil {
		return c.JSON(fiber.Map{"data": fiber.Map{"invalidated": false}})
	}
	tag := c.Params("tag")
	if err := h.cache.InvalidateTag(c.Context(), tag); err != nil {
		return fmt.Errorf("invalidate tag %s: %w", tag, err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"invalidated": true, "tag": tag}})
}

// resolveEntity returns a non-nil error for unknown entities; it never
// writes the response itself, so callers can rely on err != nil.
func (h *Handler) resolveEntity(c *fiber.Ctx) (*metadata.Entity, error) {
	name := c.Params("entity")
	entity := h.registry.GetEntity(name)
	if entity == nil {
		return nil, UnknownEntityError(name)
	}
	return entity, nil
}

// fetchRecord loads one row by primary key.
func fetchRecord(ctx context.Context, q store.Querier, entity *metadata.Entity, id any) (map[string]any, error) {
	columns := strings.Join(entity.FieldNames(), ", ")
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		columns, entity.Table, entity.PrimaryKey.Field)
	if entity.SoftDelete {
		sql += " AND deleted_at IS NULL"
	}
	return store.QueryRow(ctx, q, sql, id)
}

func splitAndTrim(s string) []any {
	if s == "" {
		return nil
	}
	var parts []any
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
