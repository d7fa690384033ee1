// Package validate checks pipeline definitions: structurally against the
// embedded JSON Schema, and semantically against the engine's rules.
package validate

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/slipway-io/slipway/schemas"
)

var (
	compiledSchema *gojsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func getSchema() (*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		loader := gojsonschema.NewBytesLoader(schemas.PipelineV1Schema)
		compiledSchema, compileErr = gojsonschema.NewSchema(loader)
	})
	return compiledSchema, compileErr
}

// DefinitionYAML validates raw pipeline.yaml bytes against the v1 schema.
// It returns a slice of validation error descriptions and an error if the
// document cannot be converted or the schema fails to compile.
func DefinitionYAML(data []byte) ([]string, error) {
	jsonData, err := sigsyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("converting definition to JSON: %w", err)
	}

	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling pipeline schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("validating definition: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}
