package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/reglet-dev/reglet-toolchain/validation"
)

// Option configures a parser.
type Option func(*options)

type options struct {
	validator *validation.SchemaValidator
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithValidator validates documents against their schema before decoding.
func WithValidator(v *validation.SchemaValidator) Option {
	return func(o *options) { o.validator = v }
}

// ForPath picks the parser matching the file extension of path.
// Unknown extensions are parsed as JSON.
func ForPath(path string, opts ...Option) CatalogParser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCatalogParser(opts...)
	default:
		return NewJSONCatalogParser(opts...)
	}
}

// InvalidDocumentError reports schema violations.
type InvalidDocumentError struct {
	Kind   string
	Errors []validation.ValidationError
}

func (e *InvalidDocumentError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		msgs = append(msgs, ve.String())
	}
	return fmt.Sprintf("invalid %s document: %s", e.Kind, strings.Join(msgs, "; "))
}

func resultError(kind string, res *validation.ValidationResult) error {
	if res.Valid {
		return nil
	}
	return &InvalidDocumentError{Kind: kind, Errors: res.Errors}
}
