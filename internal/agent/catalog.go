package agent

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/datacendia/council/internal/types"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ConflictRule declares that the Source agent challenges the Target agent's
// analysis when both take part in a deliberation.
type ConflictRule struct {
	Source    string `yaml:"source" json:"source" validate:"required"`
	Target    string `yaml:"target" json:"target" validate:"required,nefield=Source"`
	Rationale string `yaml:"rationale" json:"rationale"`
}

// Catalog is the static agent roster plus the pairing rules between them.
type Catalog struct {
	Agents    []Definition   `yaml:"agents" validate:"required,min=1,dive"`
	Conflicts []ConflictRule `yaml:"conflicts" validate:"dive"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path selects the built-in one.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(ErrCatalogInvalid, "failed to read agent catalog "+path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, types.WrapError(ErrCatalogInvalid, "failed to parse agent catalog", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks required fields, uniqueness, a single chief and that
// conflict rules only name known codes.
func (c *Catalog) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return types.WrapError(ErrCatalogInvalid, "agent catalog validation failed", err)
	}

	ids := make(map[string]bool, len(c.Agents))
	codes := make(map[string]bool, len(c.Agents))
	chiefs := 0
	for _, a := range c.Agents {
		if ids[a.ID] {
			return types.NewError(ErrCatalogInvalid, fmt.Sprintf("duplicate agent id %q", a.ID))
		}
		if codes[a.Code] {
			return types.NewError(ErrCatalogInvalid, fmt.Sprintf("duplicate agent code %q", a.Code))
		}
		ids[a.ID] = true
		codes[a.Code] = true
		if a.Chief {
			chiefs++
		}
	}
	if chiefs > 1 {
		return types.NewError(ErrCatalogInvalid, fmt.Sprintf("%d agents flagged as chief, at most one allowed", chiefs))
	}

	for i, rule := range c.Conflicts {
		if !codes[rule.Source] || !codes[rule.Target] {
			return types.NewError(ErrCatalogInvalid,
				fmt.Sprintf("conflict rule %d references unknown agent code (%s -> %s)", i, rule.Source, rule.Target))
		}
	}

	return nil
}

// Registry builds a fresh registry over the catalog's agents.
func (c *Catalog) Registry() (*Registry, error) {
	return NewRegistry(c.Agents)
}
