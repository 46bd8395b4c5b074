package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mewerton/universal-system/internal/core/domain"
)

var namespaceIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

type namespacesFile struct {
	Namespaces []domain.Namespace `yaml:"namespaces"`
}

// DefaultNamespaces are the dashboard verticals shipped with the service.
func DefaultNamespaces() []domain.Namespace {
	return []domain.Namespace{
		{ID: "supermercado", Title: "Supermercado"},
		{ID: "distribuicao", Title: "Distribuição"},
		{ID: "atacado", Title: "Atacado"},
		{ID: "serv_financeiros", Title: "Serviços Financeiros"},
		{ID: "farmacia", Title: "Farmácia"},
		{ID: "logistica", Title: "Logística"},
		{ID: "turismo", Title: "Turismo"},
		{ID: "restaurante", Title: "Restaurante"},
	}
}

// LoadNamespaces reads the namespace catalog. A missing file yields the defaults.
func LoadNamespaces(path string) ([]domain.Namespace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultNamespaces(), nil
		}
		return nil, fmt.Errorf("read namespaces file: %w", err)
	}

	var file namespacesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse namespaces file: %w", err)
	}
	if len(file.Namespaces) == 0 {
		return DefaultNamespaces(), nil
	}
	return validateNamespaces(file.Namespaces)
}

func validateNamespaces(in []domain.Namespace) ([]domain.Namespace, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]domain.Namespace, 0, len(in))
	for _, ns := range in {
		ns.ID = strings.TrimSpace(ns.ID)
		if !ValidNamespaceID(ns.ID) {
			return nil, fmt.Errorf("invalid namespace id %q", ns.ID)
		}
		if _, dup := seen[ns.ID]; dup {
			return nil, fmt.Errorf("duplicate namespace id %q", ns.ID)
		}
		seen[ns.ID] = struct{}{}
		if ns.Title == "" {
			ns.Title = ns.ID
		}
		out = append(out, ns)
	}
	return out, nil
}

// ValidNamespaceID reports whether id is safe to use as an index directory name.
func ValidNamespaceID(id string) bool {
	return namespaceIDPattern.MatchString(id)
}
