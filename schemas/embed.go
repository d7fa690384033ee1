// Package schemas provides embedded JSON Schema documents for pipeline
// definitions.
package schemas

import _ "embed"

// PipelineV1Schema is the JSON Schema for version 1 pipeline definitions.
//
//go:embed pipeline_v1.json
var PipelineV1Schema []byte
