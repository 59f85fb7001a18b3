package agent

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const (
	planSchema     = "plan.schema.json"
	judgmentSchema = "judgment.schema.json"
)

var (
	schemas     = map[string]*jsonschema.Schema{}
	compileOnce sync.Once
	compileErr  error
)

func compileSchemas() error {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		names := []string{planSchema, judgmentSchema}
		for _, name := range names {
			data, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = fmt.Errorf("read %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("unmarshal %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(name, doc); err != nil {
				compileErr = fmt.Errorf("add %s: %w", name, err)
				return
			}
		}
		for _, name := range names {
			sch, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			schemas[name] = sch
		}
	})
	return compileErr
}

// decodeJSON pulls the JSON object out of a model response, checks it
// against the named schema and decodes it into v.
func decodeJSON(content, schema string, v any) error {
	if err := compileSchemas(); err != nil {
		return err
	}
	raw := extractJSON(content)
	if raw == "" {
		return fmt.Errorf("no JSON object in response")
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schemas[schema].Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	return nil
}

// extractJSON strips markdown fences and any prose around the outermost
// JSON object.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return ""
	}
	return content[start : end+1]
}
