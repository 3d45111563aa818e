package metadata

import "sync"

type Registry struct {
	mu                sync.RWMutex
	entities          map[string]*Entity
	relationsBySource map[string][]*Relation // keyed by source entity name
	relationsByName   map[string]*Relation   // keyed by relation name
}

func NewRegistry() *Registry {
	return &Registry{
		entities:          make(map[string]*Entity),
		relationsBySource: make(map[string][]*Relation),
		relationsByName:   make(map[string]*Relation),
	}
}

// GetEntity returns the entity with the given name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// AllEntities returns all registered entities.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	return entities
}

// GetRelation returns a relation by name, or nil.
func (r *Registry) GetRelation(name string) *Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.relationsByName[name]
}

// FindRelationForEntity finds a relation by name that involves the given
// entity (as source or target). Used for resolving relation-valued fields.
func (r *Registry) FindRelationForEntity(relationName string, entityName string) *Relation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rel := r.relationsByName[relationName]
	if rel != nil && (rel.Source == entityName || rel.Target == entityName) {
		return rel
	}
	// Also allow the related entity's name as the field alias
	for _, rel := range r.relationsByName {
		if rel.Source == entityName && rel.Target == relationName {
			return rel
		}
		if rel.Target == entityName && rel.Source == relationName {
			return rel
		}
	}
	return nil
}

// Load replaces all entities and relations in the registry.
// Called during startup and after metadata mutations.
func (r *Registry) Load(entities []*Entity, relations []*Relation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entities = make(map[string]*Entity, len(entities))
	for _, e := range entities {
		r.entities[e.Name] = e
	}

	r.relationsBySource = make(map[string][]*Relation)
	r.relationsByName = make(map[string]*Relation, len(relations))
	for _, rel := range relations {
		r.relationsByName[rel.Name] = rel
		r.relationsBySource[rel.Source] = append(r.relationsBySource[rel.Source], rel)
	}
}
