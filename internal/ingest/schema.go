package ingest

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// recordSchemaFS contains the embedded residency record JSON schema.
//
//go:embed record-schema.json
var recordSchemaFS embed.FS

// recordSchemaName is the embedded schema file name.
const recordSchemaName = "record-schema.json"

// Issue is one schema violation found on a record.
type Issue struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// Validator checks NDJSON records against the embedded record schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the embedded record schema.
func NewValidator() (*Validator, error) {
	raw, err := recordSchemaFS.ReadFile(recordSchemaName)
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile record schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateLine validates a single NDJSON line. It returns the schema issues
// for a well-formed JSON document, or an error when the line is not JSON at
// all. Numbers are decoded with UseNumber so integer precision survives the
// round trip into the schema engine.
func (v *Validator) ValidateLine(line []byte) ([]Issue, error) {
	var doc any

	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate record: %w", err)
	}

	issues := make([]Issue, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		issues = append(issues, Issue{Field: verr.Field(), Description: verr.Description()})
	}

	return issues, nil
}
