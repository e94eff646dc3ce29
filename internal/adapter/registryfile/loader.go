// Package registryfile loads the location hierarchy from a YAML document.
package registryfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/hab-status-etl/internal/domain"
)

// Document is the on-disk shape of the registry.
type Document struct {
	Regions []domain.Region `yaml:"regions"`
	Cities  []domain.City   `yaml:"cities"`
	Beaches []domain.Beach  `yaml:"beaches"`
}

// Loader implements pipeline.RegistryLoader. The file is re-read on every
// call so registry edits take effect on the next run.
type Loader struct {
	path string
}

// NewLoader creates a Loader for the YAML file at path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// LoadHierarchy reads and validates the registry file.
func (l *Loader) LoadHierarchy(_ context.Context) (*domain.Hierarchy, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", l.path, err)
	}
	h, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", l.path, err)
	}
	return h, nil
}

// Parse decodes a registry document and builds the hierarchy from it.
// Unknown fields are rejected.
func Parse(r io.Reader) (*domain.Hierarchy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidHierarchy)
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return domain.NewHierarchy(doc.Regions, doc.Cities, doc.Beaches)
}

// Encode writes h as a registry document.
func Encode(w io.Writer, h *domain.Hierarchy) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	doc := Document{Regions: h.Regions(), Cities: h.Cities(), Beaches: h.Beaches()}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
