// Package parser provides functionality for parsing catalog documents.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/reglet-dev/reglet-toolchain/plugin/dto"
	"github.com/reglet-dev/reglet-toolchain/registry"
	"github.com/reglet-dev/reglet-toolchain/validation"
)

// YAMLCatalogParser implements CatalogParser for YAML.
type YAMLCatalogParser struct {
	validator *validation.SchemaValidator
}

// NewYAMLCatalogParser creates a new YAMLCatalogParser.
func NewYAMLCatalogParser(opts ...Option) *YAMLCatalogParser {
	o := newOptions(opts)
	return &YAMLCatalogParser{validator: o.validator}
}

// ParseCatalog unmarshals YAML bytes into a catalog.
func (p *YAMLCatalogParser) ParseCatalog(data []byte) (*dto.CatalogDTO, error) {
	if err := p.validate(registry.KindCatalog, data); err != nil {
		return nil, err
	}
	var doc dto.CatalogDTO
	if err := decodeYAML(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog YAML: %w", err)
	}
	return &doc, nil
}

// ParseSelfUpdateCatalog unmarshals YAML bytes into a release catalog.
func (p *YAMLCatalogParser) ParseSelfUpdateCatalog(data []byte) (*dto.SelfUpdateCatalogDTO, error) {
	if err := p.validate(registry.KindSelfUpdateCatalog, data); err != nil {
		return nil, err
	}
	var doc dto.SelfUpdateCatalogDTO
	if err := decodeYAML(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding self-update catalog YAML: %w", err)
	}
	return &doc, nil
}

func decodeYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// validate converts the YAML tree to JSON so the same schema applies.
func (p *YAMLCatalogParser) validate(kind string, data []byte) error {
	if p.validator == nil {
		return nil
	}
	var tree interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decoding %s YAML: %w", kind, err)
	}
	if tree == nil {
		tree = map[string]interface{}{}
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("converting %s YAML: %w", kind, err)
	}
	return validateJSON(p.validator, kind, raw)
}
