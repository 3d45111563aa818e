package engine

import (
	"context"
	"errors"
	"fmt"

	"pluck-backend/internal/metadata"
	"pluck-backend/internal/prune"
	"pluck-backend/internal/store"
)

// RowRecord binds a scanned row to its entity metadata and exposes the
// pruner's record capabilities. Indexed access reads raw columns; property
// access additionally resolves relation names into lazy queries (to-many)
// or fetches the related row (to-one). The context is request-scoped: a
// RowRecord lives within the request that produced it.
type RowRecord struct {
	ctx    context.Context
	q      store.Querier
	reg    *metadata.Registry
	entity *metadata.Entity
	row    map[string]any
}

func NewRowRecord(ctx context.Context, q store.Querier, reg *metadata.Registry, entity *metadata.Entity, row map[string]any) *RowRecord {
	return &RowRecord{ctx: ctx, q: q, reg: reg, entity: entity, row: row}
}

func (r *RowRecord) GetIndex(name string) (any, bool) {
	v, ok := r.row[name]
	return v, ok
}

// GetProperty returns a column value when the row has one, otherwise
// resolves the name as a relation of this record's entity. Unknown names
// fail, which the pruner treats as field absence.
func (r *RowRecord) GetProperty(name string) (any, error) {
	if v, ok := r.row[name]; ok {
		return v, nil
	}
	rel := r.reg.FindRelationForEntity(name, r.entity.Name)
	if rel == nil {
		return nil, fmt.Errorf("unknown field %s on %s", name, r.entity.Name)
	}
	return r.resolveRelation(rel)
}

func (r *RowRecord) RecordID() string {
	v, ok := r.row[r.entity.PrimaryKey.Field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// RecordType returns the discriminator field value when the entity declares
// one, otherwise the entity name.
func (r *RowRecord) RecordType() string {
	for _, f := range r.entity.Fields {
		if f.Discriminator {
			if t, ok := r.row[f.Name].(string); ok && t != "" {
				return t
			}
		}
	}
	return r.entity.Name
}

// Serialize exposes the full row for bare true leaf definitions.
func (r *RowRecord) Serialize() map[string]any {
	out := make(map[string]any, len(r.row))
	for k, v := range r.row {
		out[k] = v
	}
	return out
}

// resolveRelation produces the field value for a relation: a lazy query for
// to-many relations, the related row (or nil) for to-one.
func (r *RowRecord) resolveRelation(rel *metadata.Relation) (any, error) {
	if rel.Source == r.entity.Name {
		target := r.reg.GetEntity(rel.Target)
		if target == nil {
			return nil, fmt.Errorf("unknown target entity: %s", rel.Target)
		}
		pk := r.row[r.entity.PrimaryKey.Field]

		if rel.IsManyToMany() {
			q := NewEntityQuery(r.ctx, r.q, r.reg, target)
			q.subquery = &subqueryFilter{
				Column:       target.PrimaryKey.Field,
				Table:        rel.JoinTable,
				SelectColumn: rel.TargetJoinKey,
				MatchColumn:  rel.SourceJoinKey,
				Value:        pk,
			}
			return q, nil
		}

		if rel.IsOneToOne() {
			return r.fetchOne(target, rel.TargetKey, pk)
		}

		// one_to_many: children matched by FK on the target.
		q := NewEntityQuery(r.ctx, r.q, r.reg, target)
		q.filters = append(q.filters, WhereClause{Field: rel.TargetKey, Operator: "eq", Value: pk})
		return q, nil
	}

	// Reverse relation: this row carries the FK to the source entity.
	source := r.reg.GetEntity(rel.Source)
	if source == nil {
		return nil, fmt.Errorf("unknown source entity: %s", rel.Source)
	}
	fk, ok := r.row[rel.TargetKey]
	if !ok || fk == nil {
		return nil, nil
	}
	return r.fetchOne(source, rel.SourceKey, fk)
}

func (r *RowRecord) fetchOne(entity *metadata.Entity, column string, value any) (any, error) {
	q := NewEntityQuery(r.ctx, r.q, r.reg, entity)
	q.filters = append(q.filters, WhereClause{Field: column, Operator: "eq", Value: value})
	q.limit = 1
	sql, params := q.buildSQL()
	row, err := store.QueryRow(r.ctx, r.q, sql, params...)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return NewRowRecord(r.ctx, r.q, r.reg, entity, row), nil
}

var (
	_ prune.PropertyAccessor = (*RowRecord)(nil)
	_ prune.IndexAccessor    = (*RowRecord)(nil)
	_ prune.Identifiable     = (*RowRecord)(nil)
	_ prune.Typed            = (*RowRecord)(nil)
	_ prune.Serializable     = (*RowRecord)(nil)
)
