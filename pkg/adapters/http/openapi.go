package http

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

// Spec returns the raw OpenAPI document served at /openapi.yaml.
func Spec() []byte {
	out := make([]byte, len(rawSpec))
	copy(out, rawSpec)
	return out
}

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// schema returns a named component schema, or nil when the document has none.
func schema(doc *openapi3.T, name string) *openapi3.Schema {
	if doc == nil || doc.Components == nil {
		return nil
	}
	ref, ok := doc.Components.Schemas[name]
	if !ok || ref == nil {
		return nil
	}
	return ref.Value
}
