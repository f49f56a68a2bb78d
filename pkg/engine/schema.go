package engine

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidator validates engine input against a compiled JSON Schema.
type SchemaValidator struct {
	source string
	schema *jsonschema.Schema
}

// CompileSchema compiles a draft 2020-12 JSON Schema for the named engine.
func CompileSchema(name, source string) (*SchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://steer.schemas.local/engines/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(source)); err != nil {
		return nil, fmt.Errorf("engine %s: loading input schema: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("engine %s: compiling input schema: %w", name, err)
	}
	return &SchemaValidator{source: source, schema: compiled}, nil
}

// MustCompileSchema is like CompileSchema but panics on error. It is meant
// for schemas embedded in the binary.
func MustCompileSchema(name, source string) *SchemaValidator {
	v, err := CompileSchema(name, source)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate returns a descriptive error when input does not match the schema.
func (v *SchemaValidator) Validate(input map[string]any) error {
	if input == nil {
		return fmt.Errorf("input is required")
	}
	return v.schema.Validate(input)
}

// Valid reports whether input matches the schema.
func (v *SchemaValidator) Valid(input map[string]any) bool {
	return v.Validate(input) == nil
}

// Source returns the schema document.
func (v *SchemaValidator) Source() string {
	return v.source
}
