package parser

import "github.com/reglet-dev/reglet-toolchain/plugin/dto"

// CatalogParser parses raw catalog documents.
type CatalogParser interface {
	// ParseCatalog unmarshals a plugin catalog document.
	ParseCatalog(data []byte) (*dto.CatalogDTO, error)

	// ParseSelfUpdateCatalog unmarshals a self-update release document.
	ParseSelfUpdateCatalog(data []byte) (*dto.SelfUpdateCatalogDTO, error)
}
