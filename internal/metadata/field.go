package metadata

type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
	// Discriminator marks the field holding the record's runtime type,
	// used when a heterogeneous list is pruned with a dispatch table.
	Discriminator bool `json:"discriminator,omitempty"`
}
