package engine

import (
	"context"
	"strings"
	"testing"

	"pluck-backend/internal/metadata"
)

func testRegistry() *metadata.Registry {
	reg := metadata.NewRegistry()
	reg.Load([]*metadata.Entity{
		{
			Name:       "posts",
			Table:      "posts",
			PrimaryKey: metadata.PrimaryKey{Field: "id", Type: "uuid"},
			SoftDelete: true,
			Fields: []metadata.Field{
				{Name: "id", Type: "uuid"},
				{Name: "title", Type: "string"},
				{Name: "status", Type: "string"},
				{Name: "views", Type: "int"},
				{Name: "created_at", Type: "timestamp"},
			},
		},
		{
			Name:       "users",
			Table:      "users",
			PrimaryKey: metadata.PrimaryKey{Field: "id", Type: "uuid"},
			Fields: []metadata.Field{
				{Name: "id", Type: "uuid"},
				{Name: "name", Type: "string"},
			},
		},
	}, []*metadata.Relation{
		{
			Name: "posts", Type: "one_to_many",
			Source: "users", Target: "posts",
			SourceKey: "id", TargetKey: "author_id",
		},
	})
	return reg
}

func TestEntityQuery_BuildSQL_Defaults(t *testing.T) {
	reg := testRegistry()
	q := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts"))

	sql, params := q.buildSQL()
	if !strings.HasPrefix(sql, "SELECT id, title, status, views, created_at FROM posts") {
		t.Fatalf("unexpected SELECT: %s", sql)
	}
	if !strings.Contains(sql, "deleted_at IS NULL") {
		t.Fatalf("soft delete clause missing: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY id ASC") {
		t.Fatalf("default ordering missing: %s", sql)
	}
	if len(params) != 0 {
		t.Fatalf("expected no params, got %v", params)
	}
}

func TestEntityQuery_ApplyModifiers(t *testing.T) {
	reg := testRegistry()
	base := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts"))

	modified := base.
		Apply("where", map[string]any{"status": "published", "views.gte": 10}).
		Apply("sort", "-created_at,title").
		Apply("limit", 5).
		Apply("offset", 10)

	q, ok := modified.(*EntityQuery)
	if !ok {
		t.Fatalf("expected *EntityQuery, got %T", modified)
	}

	sql, params := q.buildSQL()
	// Conditions are added in sorted key order, so placeholders are fixed.
	if !strings.Contains(sql, "status = $1") {
		t.Fatalf("where clause missing: %s", sql)
	}
	if !strings.Contains(sql, "views >= $2") {
		t.Fatalf("gte clause missing: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY created_at DESC, title ASC") {
		t.Fatalf("sort clause wrong: %s", sql)
	}
	if !strings.Contains(sql, "LIMIT $") || !strings.Contains(sql, "OFFSET $") {
		t.Fatalf("limit/offset missing: %s", sql)
	}
	// 2 filters + limit + offset
	if len(params) != 4 {
		t.Fatalf("expected 4 params, got %v", params)
	}
	if params[0] != "published" || params[1] != 10 {
		t.Fatalf("unexpected param order: %v", params)
	}

	// The base query is untouched.
	baseSQL, baseParams := base.buildSQL()
	if strings.Contains(baseSQL, "LIMIT") || len(baseParams) != 0 {
		t.Fatalf("modifiers leaked into the base query: %s %v", baseSQL, baseParams)
	}
}

func TestEntityQuery_UnknownModifierIsNoOp(t *testing.T) {
	reg := testRegistry()
	base := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts"))

	if got := base.Apply("explode", 1); got != base {
		t.Fatal("unknown modifier must return the query unchanged")
	}
	// Malformed arguments are no-ops too.
	if got := base.Apply("limit", "not a number"); got != base {
		t.Fatal("malformed limit must be a no-op")
	}
	if got := base.Apply("limit", -1); got != base {
		t.Fatal("negative limit must be a no-op")
	}
}

func TestEntityQuery_SortSkipsUnknownFields(t *testing.T) {
	reg := testRegistry()
	base := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts"))

	q := base.Apply("sort", "nope,-created_at").(*EntityQuery)
	sql, _ := q.buildSQL()
	if strings.Contains(sql, "nope") {
		t.Fatalf("unknown sort field leaked into SQL: %s", sql)
	}
	if !strings.Contains(sql, "ORDER BY created_at DESC") {
		t.Fatalf("valid sort field dropped: %s", sql)
	}
}

func TestEntityQuery_WhereSkipsUnknownFields(t *testing.T) {
	reg := testRegistry()
	base := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts"))

	q := base.Apply("where", map[string]any{"nope": 1, "status": "draft"}).(*EntityQuery)
	sql, params := q.buildSQL()
	if strings.Contains(sql, "nope") {
		t.Fatalf("unknown filter field leaked into SQL: %s", sql)
	}
	if len(params) != 1 || params[0] != "draft" {
		t.Fatalf("expected single param draft, got %v", params)
	}
}

func TestEntityQuery_BadFilterExpressionIsNoOp(t *testing.T) {
	reg := testRegistry()
	base := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts"))

	if got := base.Apply("filter", "this is (( not an expression"); got != base {
		t.Fatal("uncompilable filter must be a no-op")
	}

	q := base.Apply("filter", `status == "published"`).(*EntityQuery)
	if q.rowFilter == nil {
		t.Fatal("valid filter expression must compile")
	}
}

func TestEntityQuery_WhereOrderIsDeterministic(t *testing.T) {
	reg := testRegistry()
	conditions := map[string]any{
		"views.gte": 10,
		"status":    "published",
		"title":     "hello",
	}

	first := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts")).
		Apply("where", conditions).(*EntityQuery)
	firstSQL, firstParams := first.buildSQL()

	// Map iteration order varies; the rendered SQL and key must not.
	for i := 0; i < 20; i++ {
		q := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts")).
			Apply("where", conditions).(*EntityQuery)
		sql, params := q.buildSQL()
		if sql != firstSQL {
			t.Fatalf("SQL varies across builds: %s vs %s", sql, firstSQL)
		}
		if len(params) != len(firstParams) {
			t.Fatalf("param count varies: %v vs %v", params, firstParams)
		}
		for j := range params {
			if params[j] != firstParams[j] {
				t.Fatalf("param order varies: %v vs %v", params, firstParams)
			}
		}
		if q.QueryKey() != first.QueryKey() {
			t.Fatalf("query key varies: %s vs %s", q.QueryKey(), first.QueryKey())
		}
	}

	if !strings.Contains(firstSQL, "status = $1") ||
		!strings.Contains(firstSQL, "title = $2") ||
		!strings.Contains(firstSQL, "views >= $3") {
		t.Fatalf("conditions not in sorted key order: %s", firstSQL)
	}
}

func TestEntityQuery_QueryKey(t *testing.T) {
	reg := testRegistry()
	base := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts"))

	k1 := base.QueryKey()
	k2 := NewEntityQuery(context.Background(), nil, reg, reg.GetEntity("posts")).QueryKey()
	if k1 != k2 {
		t.Fatalf("identical queries must share a key: %s vs %s", k1, k2)
	}

	limited := base.Apply("limit", 5).(*EntityQuery)
	if limited.QueryKey() == k1 {
		t.Fatal("modified query must change the key")
	}

	filtered := base.Apply("filter", `views > 10`).(*EntityQuery)
	if filtered.QueryKey() == k1 {
		t.Fatal("row filter must change the key")
	}
}

func TestParseFilterKey(t *testing.T) {
	field, op := parseFilterKey("total.gte")
	if field != "total" || op != "gte" {
		t.Fatalf("expected total/gte, got %s/%s", field, op)
	}
	field, op = parseFilterKey("status")
	if field != "status" || op != "eq" {
		t.Fatalf("expected status/eq, got %s/%s", field, op)
	}
}
