// Package validation checks catalog documents against their JSON schemas.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reglet-dev/reglet-toolchain/registry"
)

// SchemaValidator implements DocumentValidator with schemas from a registry.
// Compiled schemas are cached per kind.
type SchemaValidator struct {
	registry registry.SchemaRegistry

	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

var _ DocumentValidator = (*SchemaValidator)(nil)

// NewSchemaValidator creates a validator backed by reg.
func NewSchemaValidator(reg registry.SchemaRegistry) *SchemaValidator {
	return &SchemaValidator{
		registry: reg,
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Validate checks document, a value decoded from JSON, against kind's schema.
// Schema violations are reported in the result; the error is reserved for
// unknown kinds and broken schemas.
func (v *SchemaValidator) Validate(kind string, document interface{}) (*ValidationResult, error) {
	schema, err := v.schema(kind)
	if err != nil {
		return nil, err
	}

	err = schema.Validate(document)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("validating %s document: %w", kind, err)
	}
	return &ValidationResult{Errors: flatten(verr)}, nil
}

// ValidateJSON decodes data and validates it.
func (v *SchemaValidator) ValidateJSON(kind string, data []byte) (*ValidationResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding %s document: %w", kind, err)
	}
	return v.Validate(kind, doc)
}

func (v *SchemaValidator) schema(kind string) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.compiled[kind]; ok {
		return s, nil
	}

	raw, ok := v.registry.GetSchema(kind)
	if !ok {
		return nil, fmt.Errorf("no schema registered for %s", kind)
	}

	url := "mem://schemas/" + kind + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("loading %s schema: %w", kind, err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", kind, err)
	}

	v.compiled[kind] = s
	return s, nil
}

// flatten collects the leaf causes, which carry the specific messages.
func flatten(e *jsonschema.ValidationError) []ValidationError {
	if len(e.Causes) == 0 {
		return []ValidationError{{Location: e.InstanceLocation, Message: e.Message}}
	}
	var out []ValidationError
	for _, c := range e.Causes {
		out = append(out, flatten(c)...)
	}
	return out
}
