// Package registry keeps the JSON schemas of the documents the toolchain reads.
package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/reglet-dev/reglet-toolchain/plugin/dto"
)

// Document kinds registered by NewDefaultRegistry.
const (
	KindCatalog           = "catalog"
	KindSelfUpdateCatalog = "self-update-catalog"
)

// Registry implements SchemaRegistry using in-memory storage.
type Registry struct {
	schemas   map[string]string
	mu        sync.RWMutex
	reflector *jsonschema.Reflector
}

var _ SchemaRegistry = (*Registry)(nil)

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithAdditionalProperties lets generated schemas accept unknown fields.
func WithAdditionalProperties(allow bool) RegistryOption {
	return func(r *Registry) {
		r.reflector.AllowAdditionalProperties = allow
	}
}

// NewRegistry creates an empty schema registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		schemas: make(map[string]string),
		reflector: &jsonschema.Reflector{
			ExpandedStruct: true,
			Anonymous:      true,
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewDefaultRegistry creates a registry holding the catalog document schemas.
func NewDefaultRegistry(opts ...RegistryOption) *Registry {
	r := NewRegistry(opts...)
	// Both kinds are fresh, so registration cannot collide.
	_ = r.Register(KindCatalog, dto.CatalogDTO{})
	_ = r.Register(KindSelfUpdateCatalog, dto.SelfUpdateCatalogDTO{})
	return r
}

// Register adds a schema for a document kind.
// model can be a Go struct (to generate schema), a raw JSON schema
// string, []byte or map.
func (r *Registry) Register(kind string, model interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.schemas[kind]; exists {
		return fmt.Errorf("document kind already registered: %s", kind)
	}

	var schemaStr string

	switch v := model.(type) {
	case string:
		schemaStr = v
	case []byte:
		schemaStr = string(v)
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal schema map: %w", err)
		}
		schemaStr = string(b)
	default:
		t := reflect.TypeOf(model)
		if t == nil || (t.Kind() != reflect.Struct && (t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct)) {
			return fmt.Errorf("cannot derive schema for %s from %T", kind, model)
		}

		s := r.reflector.Reflect(model)
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal generated schema: %w", err)
		}
		schemaStr = string(b)
	}

	if !json.Valid([]byte(schemaStr)) {
		return fmt.Errorf("schema for %s is not valid JSON", kind)
	}

	r.schemas[kind] = schemaStr
	return nil
}

// GetSchema retrieves the JSON Schema for a document kind.
func (r *Registry) GetSchema(kind string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[kind]
	return s, ok
}

// List returns all registered document kinds, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
