package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "mem://stagehand/config.schema.json"

// documentSchema is the structural contract of the configuration document.
// Semantic checks (required keys, ports, host names) happen in Validate so
// they can all be reported at once.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["common"],
  "additionalProperties": false,
  "properties": {
    "common": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
    },
    "stages": {
      "type": ["object", "null"],
      "additionalProperties": {
        "type": ["object", "null"],
        "additionalProperties": false,
        "properties": {
          "HOST_NAME": {"type": "string"},
          "GITHUB_AUTH_SECRET_NAME": {"type": "string"},
          "NODE_ENV": {"type": "string"},
          "LOG_LEVEL": {"type": "string"},
          "STAGE_APPROVAL": {"type": "boolean"},
          "APPROVAL_EMAILS": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func documentValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(documentSchema)); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// checkStructure validates a generically decoded YAML document against the
// document schema. The value is round-tripped through JSON first so the
// validator only sees JSON types.
func checkStructure(doc any) error {
	sch, err := documentValidator()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	raw, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return fmt.Errorf("document is not representable as JSON: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}

	if err := sch.Validate(normalized); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// stringKeys rewrites mappings with non-string keys (yaml.v3 decodes
// `2024:` as an int key) so the document can be encoded as JSON. Keys
// take their literal scalar form, matching what the node walk in Parse
// reads.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = stringKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = stringKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = stringKeys(val)
		}
		return out
	}
	return v
}
