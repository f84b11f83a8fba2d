package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/reglet-toolchain/plugin/dto"
	"github.com/reglet-dev/reglet-toolchain/registry"
	"github.com/reglet-dev/reglet-toolchain/validation"
)

// JSONCatalogParser implements CatalogParser for JSON.
type JSONCatalogParser struct {
	validator *validation.SchemaValidator
}

// NewJSONCatalogParser creates a new JSONCatalogParser.
func NewJSONCatalogParser(opts ...Option) *JSONCatalogParser {
	o := newOptions(opts)
	return &JSONCatalogParser{validator: o.validator}
}

// ParseCatalog unmarshals JSON bytes into a catalog.
func (p *JSONCatalogParser) ParseCatalog(data []byte) (*dto.CatalogDTO, error) {
	if err := validateJSON(p.validator, registry.KindCatalog, data); err != nil {
		return nil, err
	}
	var doc dto.CatalogDTO
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog JSON: %w", err)
	}
	return &doc, nil
}

// ParseSelfUpdateCatalog unmarshals JSON bytes into a release catalog.
func (p *JSONCatalogParser) ParseSelfUpdateCatalog(data []byte) (*dto.SelfUpdateCatalogDTO, error) {
	if err := validateJSON(p.validator, registry.KindSelfUpdateCatalog, data); err != nil {
		return nil, err
	}
	var doc dto.SelfUpdateCatalogDTO
	if err := decodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding self-update catalog JSON: %w", err)
	}
	return &doc, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func validateJSON(v *validation.SchemaValidator, kind string, data []byte) error {
	if v == nil {
		return nil
	}
	res, err := v.ValidateJSON(kind, data)
	if err != nil {
		return err
	}
	return resultError(kind, res)
}
