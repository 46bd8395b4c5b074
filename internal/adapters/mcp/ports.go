// Package mcp exposes namespace listing, questions and ingestion as MCP tools over stdio.
package mcp

import (
	"errors"

	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/core/usecase"
)

var (
	ErrMissingCatalog  = errors.New("mcp: namespace catalog is required")
	ErrMissingSessions = errors.New("mcp: session registry is required")
)

// Ports aggregates the inbound services the MCP server drives.
type Ports struct {
	Catalog  ports.NamespaceCatalog
	Sessions *usecase.SessionRegistry
	// Uploader is optional; without it ingest_document is not registered.
	Uploader ports.DocumentUploader
}

func (p *Ports) Validate() error {
	if p.Catalog == nil {
		return ErrMissingCatalog
	}
	if p.Sessions == nil {
		return ErrMissingSessions
	}
	return nil
}
