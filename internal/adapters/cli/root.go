// Package cli implements the ragctl command tree.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/mewerton/universal-system/internal/core/ports"
	"github.com/mewerton/universal-system/internal/core/usecase"
)

// Services are the inbound use cases the commands drive.
type Services struct {
	Catalog  ports.NamespaceCatalog
	Uploader ports.DocumentUploader
	Exporter ports.TableExporter
	Sessions *usecase.SessionRegistry
}

// Opener builds Services on first use so that help and flag errors never touch the backends.
type Opener func(ctx context.Context) (*Services, func(), error)

type app struct {
	open     Opener
	services *Services
	closeFn  func()
}

// NewRootCommand returns the command tree and a func releasing whatever the opener built.
func NewRootCommand(open Opener) (*cobra.Command, func()) {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Index PDFs per dashboard vertical and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newNamespacesCommand(a),
		newIngestCommand(a),
		newAskCommand(a),
		newTablesCommand(a),
		newMCPCommand(a),
	)
	return root, a.close
}

func (a *app) close() {
	if a.closeFn != nil {
		a.closeFn()
		a.closeFn = nil
	}
}

func (a *app) load(ctx context.Context) (*Services, error) {
	if a.services != nil {
		return a.services, nil
	}
	if a.open == nil {
		return nil, errors.New("services not configured")
	}
	s, closeFn, err := a.open(ctx)
	if err != nil {
		return nil, err
	}
	a.services = s
	a.closeFn = closeFn
	return s, nil
}
