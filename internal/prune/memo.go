package prune

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sort"
)

// Cache is the injected memoization capability. Both operations are
// best-effort: any Get error counts as a miss and Set failures must not
// fail the pruning operation. Concurrent writers for the same key are
// acceptable; the backend must keep last-writer-wins semantics so that one
// writer's complete entry, never a mix of two, lands in the cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, tags []string) error
}

// Tag returns the invalidation tag for a record identity. An external
// invalidation signal for any touched record evicts the entries tagged
// with it.
func Tag(recordType, id string) string {
	if recordType == "" {
		return "record:" + id
	}
	return recordType + ":" + id
}

type recordEntry struct {
	Result map[string]any `json:"result"`
	Tags   []string       `json:"tags"`
}

type queryEntry struct {
	Results []any    `json:"results"`
	Tags    []string `json:"tags"`
}

// recordCacheKey derives a deterministic key from the record's type,
// identity and the canonical definition. Definitions are normalized before
// hashing, so equivalent shorthand forms hit the same entry; json.Marshal
// emits map keys sorted, which makes the encoding canonical.
func recordCacheKey(recordType, id string, def Definition) string {
	return hashKey("record", recordType, id, def)
}

func queryCacheKey(queryKey string, def Definition) string {
	return hashKey("query", queryKey, "", def)
}

func hashKey(kind, a, b string, def Definition) string {
	defJSON, err := json.Marshal(def)
	if err != nil {
		defJSON = []byte("{}")
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(a))
	h.Write([]byte{0})
	h.Write([]byte(b))
	h.Write([]byte{0})
	h.Write(defJSON)
	return "pluck:" + hex.EncodeToString(h.Sum(nil))
}

func (p *Pruner) getRecordEntry(ctx context.Context, key string) (*recordEntry, bool) {
	data, err := p.cache.Get(ctx, key)
	if err != nil {
		// Miss or backend outage; recompute either way.
		return nil, false
	}
	var entry recordEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// putRecordEntry stores the entry and returns the result as it will read
// back on a later hit. Returning the JSON round-trip of the computed value
// keeps miss and hit results value-equal (JSON has one number shape).
func (p *Pruner) putRecordEntry(ctx context.Context, key string, result map[string]any, tags map[string]bool) map[string]any {
	list := tagList(tags)
	data, err := json.Marshal(recordEntry{Result: result, Tags: list})
	if err != nil {
		return result
	}
	if err := p.cache.Set(ctx, key, data, list); err != nil {
		log.Printf("WARN: cache write failed: %v", err)
	}
	var entry recordEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return result
	}
	return entry.Result
}

func (p *Pruner) getQueryEntry(ctx context.Context, key string) (*queryEntry, bool) {
	data, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var entry queryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// putQueryEntry mirrors putRecordEntry for query results.
func (p *Pruner) putQueryEntry(ctx context.Context, key string, results []any, tags map[string]bool) []any {
	list := tagList(tags)
	data, err := json.Marshal(queryEntry{Results: results, Tags: list})
	if err != nil {
		return results
	}
	if err := p.cache.Set(ctx, key, data, list); err != nil {
		log.Printf("WARN: cache write failed: %v", err)
	}
	var entry queryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return results
	}
	return entry.Results
}

func tagList(tags map[string]bool) []string {
	list := make([]string, 0, len(tags))
	for t := range tags {
		list = append(list, t)
	}
	sort.Strings(list)
	return list
}
