// Package prune implements a declarative, recursive tree-pruning engine:
// given an object graph (records, lists, lazy relation queries) and a
// definition describing which fields to keep at each level, it produces a
// plain, JSON-serializable projection containing only the requested fields.
//
// The package is host-agnostic. Records, lazy queries and the cache are
// injected through small capability interfaces; the engine never touches a
// database or network itself. Malformed definitions never fail the read
// path: normalization is total and every failure degrades to a smaller or
// default result instead of aborting the traversal.
package prune
