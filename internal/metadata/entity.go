package metadata

type Entity struct {
	Name       string     `json:"name"`
	Table      string     `json:"table"`
	PrimaryKey PrimaryKey `json:"primary_key"`
	SoftDelete bool       `json:"soft_delete"`
	Fields     []Field    `json:"fields"`
}

type PrimaryKey struct {
	Field string `json:"field"`
	Type  string `json:"type"` // uuid, int, bigint, string
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns all field names.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}
