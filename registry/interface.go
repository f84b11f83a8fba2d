package registry

// SchemaRegistry manages JSON schemas for document kinds.
type SchemaRegistry interface {
	// Register adds a schema for a document kind (e.g. "catalog").
	// model can be a struct (to generate schema) or a JSON schema string/map.
	Register(kind string, model interface{}) error

	// GetSchema returns the JSON schema for a document kind.
	GetSchema(kind string) (string, bool)

	// List returns all registered document kinds, sorted.
	List() []string
}
