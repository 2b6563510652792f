package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ReservedGroupIDs are top-level path segments used by the server's own
// routes; a group with one of these ids would be unreachable.
var ReservedGroupIDs = []string{"api", "ws", "-", "healthz"}

// indexSchema is the JSON schema every decoded index payload must satisfy.
const indexSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["id", "name", "documents"],
    "properties": {
      "id": {"type": "string", "minLength": 1, "not": {"enum": %s}},
      "name": {"type": "string"},
      "description": {"type": "string"},
      "documents": {
        "type": "array",
        "minItems": 1,
        "items": {
          "type": "object",
          "required": ["id", "name", "url"],
          "properties": {
            "id": {"type": "string", "minLength": 1},
            "name": {"type": "string"},
            "url": {"type": "string", "minLength": 1}
          }
        }
      }
    }
  }
}`

const schemaResource = "apiview-index.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		reserved, _ := json.Marshal(ReservedGroupIDs)
		c := jsonschema.NewCompiler()
		src := fmt.Sprintf(indexSchema, reserved)
		if err := c.AddResource(schemaResource, strings.NewReader(src)); err != nil {
			compileErr = fmt.Errorf("adding index schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(schemaResource)
	})
	return compiledSchema, compileErr
}

// ValidateSchema validates a decoded payload (the result of unmarshalling
// JSON into an any) against the index schema. It returns one message per
// violation, each prefixed with the instance location.
func ValidateSchema(v any) ([]string, error) {
	s, err := schema()
	if err != nil {
		return nil, err
	}
	err = s.Validate(v)
	if err == nil {
		return nil, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validating index: %w", err)
	}

	violations := leafViolations(ve, nil)
	if len(violations) == 0 {
		violations = append(violations, ve.Error())
	}
	return violations, nil
}

// leafViolations flattens the error tree, keeping only leaves. Inner nodes
// carry summaries such as "doesn't validate with ..." that repeat their causes.
func leafViolations(ve *jsonschema.ValidationError, out []string) []string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return append(out, fmt.Sprintf("%s: %s", loc, ve.Message))
	}
	for _, c := range ve.Causes {
		out = leafViolations(c, out)
	}
	return out
}
