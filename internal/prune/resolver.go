package prune

import "time"

// ValueKind classifies a resolved field value and drives pruner dispatch.
type ValueKind int

const (
	KindScalar ValueKind = iota
	KindPlainList
	KindRecordList
	KindSingleRecord
	KindLazyQuery
	KindVerbatim
	KindOpaque
)

// ResolvedValue is the runtime classification of a fetched field value.
type ResolvedValue struct {
	Kind    ValueKind
	Value   any       // scalar, plain list, verbatim payload or opaque object
	Records []any     // KindRecordList elements, original order
	Query   LazyQuery // KindLazyQuery, directives already applied
}

// Resolve retrieves a field from a record and classifies the result. When
// the value is a lazy query, every directive is applied as a chained
// modifier (unknown names are no-ops per the LazyQuery contract) and the
// query is returned unmaterialized for the query entry point to process.
// Field absence and access failures yield a nil scalar, never an error.
func Resolve(record any, name string, directives map[string]any) ResolvedValue {
	v := getField(record, name)
	if q, ok := v.(LazyQuery); ok {
		for dname, arg := range directives {
			q = q.Apply(dname, arg)
		}
		return ResolvedValue{Kind: KindLazyQuery, Query: q}
	}
	return Classify(v)
}

// getField tries property access first, then indexed access. Failures in
// either path are treated as absence.
func getField(record any, name string) any {
	if pa, ok := record.(PropertyAccessor); ok {
		v, err := pa.GetProperty(name)
		if err == nil {
			return v
		}
	}
	if ia, ok := record.(IndexAccessor); ok {
		if v, ok := ia.GetIndex(name); ok {
			return v
		}
	}
	if m, ok := record.(map[string]any); ok {
		return m[name]
	}
	return nil
}

// Classify determines the runtime shape of a value. First match wins:
// scalar, record list, plain list, single record, lazy query, verbatim
// rich content, opaque object.
func Classify(v any) ResolvedValue {
	if v == nil || isScalar(v) {
		return ResolvedValue{Kind: KindScalar, Value: v}
	}

	switch val := v.(type) {
	case []any:
		return classifyList(val, v)
	case []map[string]any:
		list := make([]any, len(val))
		for i, m := range val {
			list[i] = m
		}
		return classifyList(list, v)
	case []MapRecord:
		list := make([]any, len(val))
		for i, m := range val {
			list[i] = m
		}
		return classifyList(list, v)
	}

	if q, ok := v.(LazyQuery); ok {
		return ResolvedValue{Kind: KindLazyQuery, Query: q}
	}
	if vb, ok := v.(Verbatim); ok {
		return ResolvedValue{Kind: KindVerbatim, Value: vb.VerbatimValue()}
	}
	// Collection wrappers unwrap to a plain sequence before classification.
	if ac, ok := v.(ArrayConvertible); ok {
		list := ac.ToArray()
		return classifyList(list, list)
	}
	if rec, ok := asRecord(v); ok {
		if identityOf(rec) != "" {
			return ResolvedValue{Kind: KindSingleRecord, Value: rec}
		}
		// A record shape without identity is recursed into like any
		// other opaque object.
		return ResolvedValue{Kind: KindOpaque, Value: rec}
	}
	return ResolvedValue{Kind: KindOpaque, Value: v}
}

// classifyList returns a RecordList when every element is recognizably a
// record, otherwise the original sequence passes through unpruned.
func classifyList(list []any, original any) ResolvedValue {
	if len(list) == 0 {
		return ResolvedValue{Kind: KindPlainList, Value: original}
	}
	records := make([]any, len(list))
	for i, el := range list {
		rec, ok := asRecord(el)
		if !ok {
			return ResolvedValue{Kind: KindPlainList, Value: original}
		}
		records[i] = rec
	}
	return ResolvedValue{Kind: KindRecordList, Records: records}
}

func isScalar(v any) bool {
	switch v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time:
		return true
	}
	return false
}
