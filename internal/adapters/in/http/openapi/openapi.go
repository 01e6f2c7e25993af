// Package openapi embeds the HTTP contract, validates it at startup and
// publishes it to the swagger UI.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/swaggo/swag"
)

//go:embed openapi.yaml
var document []byte

// Spec is the loaded contract.
type Spec struct {
	doc  *openapi3.T
	json []byte
}

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*Spec, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err = doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return &Spec{doc: doc, json: raw}, nil
}

func (s *Spec) JSON() []byte {
	return s.json
}

// HasOperation reports whether the contract declares method on path.
func (s *Spec) HasOperation(method, path string) bool {
	item := s.doc.Paths.Find(path)
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}

// ReadDoc implements swag.Swagger.
func (s *Spec) ReadDoc() string {
	return string(s.json)
}

// Register makes the document the one served under /swagger.
func (s *Spec) Register() {
	swag.Register(swag.Name, s)
}
