// Package dto holds the wire documents exchanged with catalog sources.
package dto

import (
	"fmt"
	"sort"

	"github.com/reglet-dev/reglet-toolchain/plugin/values"
)

// CatalogDTO is a plugin catalog document as published by a repository.
type CatalogDTO struct {
	Name    string           `json:"name,omitempty" yaml:"name,omitempty" jsonschema:"description=Human readable repository name"`
	Plugins []PluginEntryDTO `json:"plugins" yaml:"plugins" jsonschema:"required"`
}

// PluginEntryDTO lists the releases of one plugin and the tools it owns.
type PluginEntryDTO struct {
	Name     string         `json:"name" yaml:"name" jsonschema:"required,minLength=1,maxLength=64,pattern=^[A-Za-z0-9_.-]+$"`
	Versions []ReleaseDTO   `json:"versions" yaml:"versions" jsonschema:"required"`
	Tools    []ToolEntryDTO `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// ToolEntryDTO lists the releases of one tool.
type ToolEntryDTO struct {
	Name     string       `json:"name" yaml:"name" jsonschema:"required,minLength=1,maxLength=64,pattern=^[A-Za-z0-9_.-]+$"`
	Versions []ReleaseDTO `json:"versions" yaml:"versions" jsonschema:"required"`
}

// ReleaseDTO is one downloadable release.
type ReleaseDTO struct {
	Version      string            `json:"version" yaml:"version" jsonschema:"required,minLength=1"`
	URL          string            `json:"url" yaml:"url" jsonschema:"required,minLength=1"`
	Signature    string            `json:"signature,omitempty" yaml:"signature,omitempty" jsonschema:"description=Detached OpenPGP signature locator"`
	Hash         string            `json:"hash,omitempty" yaml:"hash,omitempty" jsonschema:"pattern=^(sha1|sha256|sha384|sha512):[0-9a-fA-F]+$"`
	Requirements map[string]string `json:"requirements,omitempty" yaml:"requirements,omitempty"`
}

// ToDigest parses the declared hash; the zero Digest means none.
func (r *ReleaseDTO) ToDigest() (values.Digest, error) {
	if r.Hash == "" {
		return values.Digest{}, nil
	}
	d, err := values.ParseDigest(r.Hash)
	if err != nil {
		return values.Digest{}, fmt.Errorf("release %s: %w", r.Version, err)
	}
	return d, nil
}

// ToRequirements converts the requirement map, ordered by name.
func (r *ReleaseDTO) ToRequirements() values.RequirementList {
	names := make([]string, 0, len(r.Requirements))
	for name := range r.Requirements {
		names = append(names, name)
	}
	sort.Strings(names)

	var list values.RequirementList
	for _, name := range names {
		list.Add(name, r.Requirements[name])
	}
	return list
}

// SelfUpdateCatalogDTO lists releases of the toolchain itself.
type SelfUpdateCatalogDTO struct {
	Versions []ReleaseDTO `json:"versions" yaml:"versions" jsonschema:"required"`
}
