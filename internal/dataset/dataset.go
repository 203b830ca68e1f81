// Package dataset loads the per-state ESG/ESI inputs.
//
// The seed shipped with the binary is YAML; operators may point the server at
// their own YAML or XLSX file instead.
package dataset

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/ecoinvest/internal/domain/model"
)

//go:embed states.yaml
var seedYAML []byte

// Sentinel errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	ErrInvalidDataset    = errors.New("invalid dataset")
)

type document struct {
	States []row `yaml:"states"`
}

type row struct {
	Name          string   `yaml:"name"`
	NormalizedESI float64  `yaml:"normalized_esi"`
	Environmental float64  `yaml:"environmental"`
	Social        float64  `yaml:"social"`
	Governance    float64  `yaml:"governance"`
	Initiatives   []string `yaml:"initiatives"`
}

// Seed returns the embedded dataset.
func Seed() ([]model.State, error) {
	return ReadYAML(bytes.NewReader(seedYAML))
}

// Load reads path, choosing the parser by extension. An empty path returns Seed().
func Load(_ context.Context, path string) ([]model.State, error) {
	if path == "" {
		return Seed()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer func() { _ = f.Close() }()
		return ReadYAML(f)
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open dataset: %w", err)
		}
		defer func() { _ = f.Close() }()
		return ReadXLSX(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ReadYAML decodes a `states:` document.
func ReadYAML(r io.Reader) ([]model.State, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}
	states := make([]model.State, 0, len(doc.States))
	for _, r := range doc.States {
		states = append(states, model.State{
			Name:          strings.TrimSpace(r.Name),
			NormalizedESI: r.NormalizedESI,
			Environmental: r.Environmental,
			Social:        r.Social,
			Governance:    r.Governance,
			Initiatives:   r.Initiatives,
		})
	}
	return states, validate(states)
}

func validate(states []model.State) error {
	if len(states) == 0 {
		return fmt.Errorf("%w: no states", ErrInvalidDataset)
	}
	seen := make(map[string]struct{}, len(states))
	for i, s := range states {
		if s.Name == "" {
			return fmt.Errorf("%w: row %d has no state name", ErrInvalidDataset, i+1)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate state %q", ErrInvalidDataset, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
