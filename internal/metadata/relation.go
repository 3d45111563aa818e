package metadata

type Relation struct {
	Name          string `json:"name"`
	Type          string `json:"type"` // one_to_one, one_to_many, many_to_many
	Source        string `json:"source"`
	Target        string `json:"target"`
	SourceKey     string `json:"source_key"`
	TargetKey     string `json:"target_key"`
	JoinTable     string `json:"join_table,omitempty"`
	SourceJoinKey string `json:"source_join_key,omitempty"`
	TargetJoinKey string `json:"target_join_key,omitempty"`
}

// IsOneToOne returns true for one_to_one relations.
func (r *Relation) IsOneToOne() bool {
	return r.Type == "one_to_one"
}

// IsManyToMany returns true for many_to_many relations.
func (r *Relation) IsManyToMany() bool {
	return r.Type == "many_to_many"
}
