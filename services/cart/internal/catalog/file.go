package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/utafrali/EcommerceGo/services/cart/internal/domain"
)

// document is the top-level shape of a catalog file.
type document struct {
	Products []domain.Product `json:"products" yaml:"products"`
}

// LoadFile reads a catalog from a .json, .yaml or .yml file.
func LoadFile(ctx context.Context, path string, policy Policy) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	products, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	return NewStatic(ctx, products, policy)
}

// Parse decodes catalog data; ext selects the format (".json", ".yaml",
// ".yml"). Unknown fields are rejected in both formats.
func Parse(data []byte, ext string) ([]domain.Product, error) {
	var doc document
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	return doc.Products, nil
}
