package compliance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"exportready-backend/internal/llm"
)

const issueArraySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "type": {"type": "string"},
      "rule_key": {"type": "string"},
      "your_value": {"type": ["string", "number", "boolean", "null"]},
      "required_value": {"type": ["string", "number", "boolean", "null"]},
      "description": {"type": "string"},
      "severity": {"type": "string"}
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func issueSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("issues.json", strings.NewReader(issueArraySchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("issues.json")
	})
	return schema, schemaErr
}

// ParseIssues extracts the issue array embedded in an analyzer reply.
// Any reply without a well-formed array is rejected as a whole.
func ParseIssues(reply string) ([]Issue, error) {
	raw, err := llm.ExtractJSONArray(reply)
	if err != nil {
		return nil, err
	}
	sch, err := issueSchema()
	if err != nil {
		return nil, fmt.Errorf("compile issue schema: %w", err)
	}

	var doc any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrNoJSON, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("issue array rejected: %w", err)
	}

	items, _ := doc.([]any)
	out := make([]Issue, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		out = append(out, Issue{
			Type:          stringify(obj["type"]),
			RuleKey:       stringify(obj["rule_key"]),
			YourValue:     stringify(obj["your_value"]),
			RequiredValue: stringify(obj["required_value"]),
			Description:   stringify(obj["description"]),
			Severity:      NormalizeSeverity(stringify(obj["severity"])),
		})
	}
	return out, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
