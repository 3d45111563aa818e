package prune

import (
	"context"
	"errors"
	"log"
)

// ErrNotARecord is returned by PruneObject when the input exposes no field
// access capability. It is a recoverable result value, never a panic.
var ErrNotARecord = errors.New("not a record")

// Pruner walks an object graph and produces plain-data projections. The
// cache is optional; a nil cache disables memoization. A Pruner is safe for
// concurrent use: each invocation carries its own traversal state.
type Pruner struct {
	cache Cache
}

func New(cache Cache) *Pruner {
	return &Pruner{cache: cache}
}

// pruneState tracks the (type, identity) pairs on the active recursion path
// so cyclic record graphs terminate: re-entering a record yields an identity
// stub instead of recursing.
type pruneState struct {
	visiting map[string]bool
}

func newState() *pruneState {
	return &pruneState{visiting: make(map[string]bool)}
}

// PruneData prunes one record or an ordered sequence of records, preserving
// input order. Non-sequence input is wrapped as a single-element sequence.
// Elements that are not records yield a structured error marker in place.
func (p *Pruner) PruneData(ctx context.Context, input any, definition any) []any {
	def := Normalize(definition)
	items := asSequence(input)
	st := newState()
	out := make([]any, 0, len(items))
	for _, item := range items {
		res, _, err := p.pruneRecord(ctx, item, def, st)
		if err != nil {
			out = append(out, notARecordResult())
			continue
		}
		out = append(out, res)
	}
	return out
}

// PruneObject prunes a single record into a plain map. A non-record input
// returns ErrNotARecord as a value.
func (p *Pruner) PruneObject(ctx context.Context, record any, definition any) (map[string]any, error) {
	res, _, err := p.pruneRecord(ctx, record, Normalize(definition), newState())
	return res, err
}

// PruneQuery extracts top-level directives from the definition, applies them
// as modifiers to the query, materializes it and prunes every resulting
// record with the remaining definition.
func (p *Pruner) PruneQuery(ctx context.Context, q LazyQuery, definition any) []any {
	def := Normalize(definition)
	fields, directives := ExtractSpecials(def)
	for name, arg := range directives {
		q = q.Apply(name, arg)
	}
	tags := make(map[string]bool)
	return p.runQuery(ctx, q, fields, newState(), tags)
}

// pruneRecord produces the projection for one record. Directives extracted
// from the node apply to every lazy field resolved below it. It returns the
// set of invalidation tags touched while computing the result (the record's
// own identity plus every related record's), which also tag the cache entry.
func (p *Pruner) pruneRecord(ctx context.Context, record any, def Definition, st *pruneState) (map[string]any, map[string]bool, error) {
	rec, ok := asRecord(record)
	if !ok {
		return nil, nil, ErrNotARecord
	}

	fields, directives := ExtractSpecials(def)

	tags := make(map[string]bool)
	id := identityOf(rec)
	typ := typeOf(rec)
	cacheKey := ""

	if id != "" {
		tags[Tag(typ, id)] = true

		visitKey := typ + "\x00" + id
		if st.visiting[visitKey] {
			// Cycle: emit an identity stub and stop descending.
			return map[string]any{"id": id}, tags, nil
		}
		st.visiting[visitKey] = true
		defer delete(st.visiting, visitKey)

		if p.cache != nil {
			// Keyed on the whole node so directives distinguish entries.
			cacheKey = recordCacheKey(typ, id, def)
			if entry, ok := p.getRecordEntry(ctx, cacheKey); ok {
				for _, t := range entry.Tags {
					tags[t] = true
				}
				return entry.Result, tags, nil
			}
		}
	}

	out := make(map[string]any, len(fields))
	for name, child := range fields {
		if !keep(child) {
			continue
		}
		out[name] = p.pruneField(ctx, rec, name, child, directives, st, tags)
	}

	if cacheKey != "" {
		out = p.putRecordEntry(ctx, cacheKey, out, tags)
	}
	return out, tags, nil
}

// pruneField resolves one field and dispatches on the runtime shape of its
// value. The node's directives combine with the child node's own (the child
// wins on conflict) and take effect only on lazy-query values. Every failure
// path degrades to nil or a serialized fallback; a malformed branch never
// aborts the surrounding traversal.
func (p *Pruner) pruneField(ctx context.Context, rec any, name string, childDef any, nodeDirectives map[string]any, st *pruneState, tags map[string]bool) any {
	childMap, isMap := asDefinition(childDef)
	var childFields Definition
	var childDirectives map[string]any
	if isMap {
		childFields, childDirectives = ExtractSpecials(childMap)
	}

	rv := Resolve(rec, name, mergeDirectives(nodeDirectives, childDirectives))
	switch rv.Kind {
	case KindScalar, KindPlainList, KindVerbatim:
		return rv.Value

	case KindRecordList:
		return p.pruneList(ctx, rv.Records, childDef, childFields, st, tags)

	case KindSingleRecord:
		if isMap {
			out, sub, err := p.pruneRecord(ctx, rv.Value, childMap, st)
			if err != nil {
				return nil
			}
			mergeTags(tags, sub)
			return out
		}
		// Bare true leaf keeps the whole related record.
		if id := identityOf(rv.Value); id != "" {
			tags[Tag(typeOf(rv.Value), id)] = true
		}
		return serializeValue(rv.Value)

	case KindLazyQuery:
		return p.runQuery(ctx, rv.Query, childFields, st, tags)

	case KindOpaque:
		if isMap {
			out, sub, err := p.pruneRecord(ctx, rv.Value, childMap, st)
			if err != nil {
				return serializeValue(rv.Value)
			}
			mergeTags(tags, sub)
			return out
		}
		return serializeValue(rv.Value)
	}
	return nil
}

// pruneList applies the matrix-style list rule. A non-empty definition whose
// keys are all type selectors is a dispatch table: each record is pruned by
// the selector matching its discriminator, and records matching none are
// dropped. Any other definition applies uniformly to every record.
func (p *Pruner) pruneList(ctx context.Context, records []any, rawDef any, fields Definition, st *pruneState, tags map[string]bool) []any {
	if fields != nil && AllTypeSelectors(fields) {
		out := make([]any, 0, len(records))
		for _, rec := range records {
			t := typeOf(rec)
			if t == "" {
				continue
			}
			sub, ok := fields[TypeSelectorPrefix+t]
			if !ok {
				continue
			}
			out = append(out, p.pruneBranch(ctx, rec, sub, st, tags))
		}
		return out
	}

	out := make([]any, 0, len(records))
	for _, rec := range records {
		out = append(out, p.pruneBranch(ctx, rec, rawDef, st, tags))
	}
	return out
}

// pruneBranch prunes one record with an arbitrary definition node: a mapping
// recurses, anything else keeps the record via the serialization fallback.
func (p *Pruner) pruneBranch(ctx context.Context, rec any, def any, st *pruneState, tags map[string]bool) any {
	if d, ok := asDefinition(def); ok {
		out, sub, err := p.pruneRecord(ctx, rec, d, st)
		if err != nil {
			return serializeValue(rec)
		}
		mergeTags(tags, sub)
		return out
	}
	if id := identityOf(rec); id != "" {
		tags[Tag(typeOf(rec), id)] = true
	}
	return serializeValue(rec)
}

// runQuery materializes a lazy query (modifiers already applied) and prunes
// each resulting record. Keyed queries are memoized; materialization failure
// degrades to an empty sequence.
func (p *Pruner) runQuery(ctx context.Context, q LazyQuery, fields Definition, st *pruneState, tags map[string]bool) []any {
	cacheKey := ""
	if keyed, ok := q.(Keyed); ok && p.cache != nil && keyed.QueryKey() != "" {
		cacheKey = queryCacheKey(keyed.QueryKey(), fields)
		if entry, ok := p.getQueryEntry(ctx, cacheKey); ok {
			for _, t := range entry.Tags {
				tags[t] = true
			}
			return entry.Results
		}
	}

	items, err := q.Materialize(ctx)
	if err != nil {
		log.Printf("WARN: materialize query: %v", err)
		return []any{}
	}

	qtags := make(map[string]bool)
	out := make([]any, 0, len(items))
	for _, item := range items {
		var def any = fields
		if fields == nil {
			def = true
		}
		out = append(out, p.pruneBranch(ctx, item, def, st, qtags))
	}

	if cacheKey != "" {
		out = p.putQueryEntry(ctx, cacheKey, out, qtags)
	}
	mergeTags(tags, qtags)
	return out
}

// mergeDirectives overlays a child node's directives on its parent node's;
// the child wins on conflict.
func mergeDirectives(node, child map[string]any) map[string]any {
	if len(node) == 0 {
		return child
	}
	if len(child) == 0 {
		return node
	}
	merged := make(map[string]any, len(node)+len(child))
	for k, v := range node {
		merged[k] = v
	}
	for k, v := range child {
		merged[k] = v
	}
	return merged
}

// asSequence coerces the pruning input into an ordered sequence,
// wrapping any non-sequence value as a single element.
func asSequence(input any) []any {
	switch v := input.(type) {
	case []any:
		return v
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	case []MapRecord:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	default:
		return []any{input}
	}
}

func notARecordResult() map[string]any {
	return map[string]any{"error": ErrNotARecord.Error()}
}

func mergeTags(dst, src map[string]bool) {
	for t := range src {
		dst[t] = true
	}
}
