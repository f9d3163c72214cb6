package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var predicateSeq atomic.Uint64

// Predicate is a compiled JSON Schema used as a boolean test or validator.
type Predicate struct {
	doc      map[string]any
	compiled *jsonschema.Schema
}

// CompilePredicate compiles a JSON Schema document (draft 2020-12).
func CompilePredicate(doc map[string]any) (*Predicate, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	return compile(doc, string(raw))
}

// CompileObject compiles the JSON Schema rendering of an Object.
func CompileObject(o Object) (*Predicate, error) {
	return CompilePredicate(o.JSONSchema())
}

// ParsePredicate compiles a JSON Schema given as text.
func ParsePredicate(text string) (*Predicate, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return compile(doc, text)
}

func compile(doc map[string]any, text string) (*Predicate, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://tendril.schemas.local/predicate/%d.schema.json", predicateSeq.Add(1))
	if err := c.AddResource(url, strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("schema load failed: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema compile failed: %w", err)
	}
	return &Predicate{doc: doc, compiled: compiled}, nil
}

// Document returns the source schema document.
func (p *Predicate) Document() map[string]any { return p.doc }

// Validate checks value against the schema.
func (p *Predicate) Validate(value any) error {
	normalized, err := normalize(value)
	if err != nil {
		return err
	}
	if err := p.compiled.Validate(normalized); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Match reports whether value satisfies the schema.
func (p *Predicate) Match(value any) bool {
	return p.Validate(value) == nil
}

// normalize converts Go values into the raw JSON shape the validator expects.
func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}
