package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"pluck-backend/internal/metadata"
	"pluck-backend/internal/prune"
	"pluck-backend/internal/store"
)

type WhereClause struct {
	Field    string
	Operator string
	Value    any
}

type OrderClause struct {
	Field string
	Dir   string // ASC or DESC
}

// subqueryFilter restricts a query to rows whose Column appears in
// SELECT SelectColumn FROM Table WHERE MatchColumn = Value. Used for
// many_to_many join tables.
type subqueryFilter struct {
	Column       string
	Table        string
	SelectColumn string
	MatchColumn  string
	Value        any
}

type paramBuilder struct {
	params []any
	n      int
}

func (p *paramBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

// EntityQuery is a deferred, modifiable SQL query over one entity,
// implementing the pruner's lazy-query capability. Modifiers accumulate
// into the parameterized SELECT; materialization wraps each row as a
// RowRecord so pruning can keep descending through relations.
type EntityQuery struct {
	ctx    context.Context
	q      store.Querier
	reg    *metadata.Registry
	entity *metadata.Entity

	filters  []WhereClause
	sorts    []OrderClause
	subquery *subqueryFilter
	limit    int
	offset   int

	// $filter expressions run against each materialized row.
	rowFilter    *vm.Program
	rowFilterSrc string
}

func NewEntityQuery(ctx context.Context, q store.Querier, reg *metadata.Registry, entity *metadata.Entity) *EntityQuery {
	return &EntityQuery{ctx: ctx, q: q, reg: reg, entity: entity}
}

func (eq *EntityQuery) clone() *EntityQuery {
	c := *eq
	c.filters = append([]WhereClause(nil), eq.filters...)
	c.sorts = append([]OrderClause(nil), eq.sorts...)
	return &c
}

// Apply returns a modified copy of the query. Recognized modifiers: limit,
// offset, sort ("-created_at,name"), where ({field: value}), filter (an
// expr-lang boolean expression over the row). Unknown names and malformed
// arguments are no-ops; a prune definition must never fail the read path.
func (eq *EntityQuery) Apply(name string, arg any) prune.LazyQuery {
	switch name {
	case "limit":
		if n, ok := toInt(arg); ok && n >= 0 {
			c := eq.clone()
			c.limit = n
			return c
		}
	case "offset":
		if n, ok := toInt(arg); ok && n >= 0 {
			c := eq.clone()
			c.offset = n
			return c
		}
	case "sort":
		if s, ok := arg.(string); ok {
			c := eq.clone()
			c.applySort(s)
			return c
		}
	case "where":
		if m, ok := arg.(map[string]any); ok {
			c := eq.clone()
			c.applyWhere(m)
			return c
		}
	case "filter":
		if src, ok := arg.(string); ok {
			prog, err := expr.Compile(src, expr.AsBool())
			if err != nil {
				log.Printf("WARN: ignoring $filter %q: %v", src, err)
				return eq
			}
			c := eq.clone()
			c.rowFilter = prog
			c.rowFilterSrc = src
			return c
		}
	}
	return eq
}

// applySort parses the "-created_at,name" sort syntax. Unknown fields are
// skipped rather than rejected.
func (eq *EntityQuery) applySort(param string) {
	for _, part := range strings.Split(param, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dir := "ASC"
		field := part
		if strings.HasPrefix(part, "-") {
			dir = "DESC"
			field = part[1:]
		}
		if !eq.entity.HasField(field) {
			log.Printf("WARN: ignoring sort on unknown field %s.%s", eq.entity.Name, field)
			continue
		}
		eq.sorts = append(eq.sorts, OrderClause{Field: field, Dir: dir})
	}
}

// applyWhere adds conditions in sorted key order so the rendered SQL,
// parameter positions and QueryKey are stable across runs.
func (eq *EntityQuery) applyWhere(conditions map[string]any) {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val := conditions[key]
		field, op := parseFilterKey(key)
		if !eq.entity.HasField(field) {
			log.Printf("WARN: ignoring filter on unknown field %s.%s", eq.entity.Name, field)
			continue
		}
		eq.filters = append(eq.filters, WhereClause{Field: field, Operator: op, Value: val})
	}
}

// buildSQL assembles the parameterized SELECT for the current modifiers.
func (eq *EntityQuery) buildSQL() (string, []any) {
	pb := &paramBuilder{}
	entity := eq.entity

	columns := strings.Join(entity.FieldNames(), ", ")

	var where []string
	if entity.SoftDelete {
		where = append(where, "deleted_at IS NULL")
	}
	if sq := eq.subquery; sq != nil {
		where = append(where, fmt.Sprintf("%s IN (SELECT %s FROM %s WHERE %s = %s)",
			sq.Column, sq.SelectColumn, sq.Table, sq.MatchColumn, pb.Add(sq.Value)))
	}
	for _, f := range eq.filters {
		where = append(where, buildWhereClause(f, pb))
	}

	sql := fmt.Sprintf("SELECT %s FROM %s", columns, entity.Table)
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}

	if len(eq.sorts) > 0 {
		var orderParts []string
		for _, s := range eq.sorts {
			orderParts = append(orderParts, fmt.Sprintf("%s %s", s.Field, s.Dir))
		}
		sql += " ORDER BY " + strings.Join(orderParts, ", ")
	} else {
		// Deterministic order keeps projections and cache entries stable.
		sql += fmt.Sprintf(" ORDER BY %s ASC", entity.PrimaryKey.Field)
	}

	if eq.limit > 0 {
		sql += " LIMIT " + pb.Add(eq.limit)
	}
	if eq.offset > 0 {
		sql += " OFFSET " + pb.Add(eq.offset)
	}

	return sql, pb.params
}

// Materialize executes the query and returns the rows as records, applying
// any $filter expression post-query.
func (eq *EntityQuery) Materialize(ctx context.Context) ([]any, error) {
	sql, params := eq.buildSQL()
	rows, err := store.QueryRows(ctx, eq.q, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("materialize %s: %w", eq.entity.Name, err)
	}

	out := make([]any, 0, len(rows))
	for _, row := range rows {
		if eq.rowFilter != nil {
			keep, err := vm.Run(eq.rowFilter, map[string]any(row))
			if err != nil || keep != true {
				continue
			}
		}
		out = append(out, NewRowRecord(eq.ctx, eq.q, eq.reg, eq.entity, row))
	}
	return out, nil
}

// QueryKey fingerprints the query for memoization: the rendered SQL, its
// parameters and any row filter expression.
func (eq *EntityQuery) QueryKey() string {
	sql, params := eq.buildSQL()
	return fmt.Sprintf("%s|%v|%s", sql, params, eq.rowFilterSrc)
}

func buildWhereClause(f WhereClause, pb *paramBuilder) string {
	switch f.Operator {
	case "eq", "":
		return fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value))
	case "neq":
		return fmt.Sprintf("%s != %s", f.Field, pb.Add(f.Value))
	case "gt":
		return fmt.Sprintf("%s > %s", f.Field, pb.Add(f.Value))
	case "gte":
		return fmt.Sprintf("%s >= %s", f.Field, pb.Add(f.Value))
	case "lt":
		return fmt.Sprintf("%s < %s", f.Field, pb.Add(f.Value))
	case "lte":
		return fmt.Sprintf("%s <= %s", f.Field, pb.Add(f.Value))
	case "in":
		return fmt.Sprintf("%s = ANY(%s)", f.Field, pb.Add(f.Value))
	case "like":
		return fmt.Sprintf("%s LIKE %s", f.Field, pb.Add(f.Value))
	default:
		return fmt.Sprintf("%s = %s", f.Field, pb.Add(f.Value))
	}
}

// parseFilterKey splits "total.gte" into ("total", "gte") or "status" into ("status", "eq").
func parseFilterKey(key string) (string, string) {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, "eq"
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

var (
	_ prune.LazyQuery = (*EntityQuery)(nil)
	_ prune.Keyed     = (*EntityQuery)(nil)
)
