package record

import (
	"embed"
	"encoding/json"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

//go:embed schemas/*.json
var schemaAssets embed.FS

var (
	schemaOnce    sync.Once
	schemaByType  map[Type]*jsonschema.Resolved
	schemaLoadErr error
)

func schemaFileFor(t Type) string {
	return "schemas/" + string(t) + ".json"
}

// loadSchemas compiles every embedded per-type schema exactly once and
// caches the resolved instance (§9 "Schema-driven validation... compile
// once and cache per schema instance").
func loadSchemas() (map[Type]*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		types := []Type{TypeActor, TypeAgent, TypeTask, TypeExecution, TypeFeedback, TypeCycle, TypeChangelog}
		out := make(map[Type]*jsonschema.Resolved, len(types))
		for _, t := range types {
			raw, err := schemaAssets.ReadFile(schemaFileFor(t))
			if err != nil {
				schemaLoadErr = err
				return
			}
			var s jsonschema.Schema
			if err := json.Unmarshal(raw, &s); err != nil {
				schemaLoadErr = err
				return
			}
			resolved, err := s.Resolve(nil)
			if err != nil {
				schemaLoadErr = err
				return
			}
			out[t] = resolved
		}
		schemaByType = out
	})
	return schemaByType, schemaLoadErr
}

// ValidateSchema checks payload (already-decoded, e.g. via json.Unmarshal
// into map[string]any) against the compiled schema for t.
func ValidateSchema(t Type, payload any) []FieldError {
	schemas, err := loadSchemas()
	if err != nil {
		return []FieldError{{Field: "(schema)", Message: "schema load failed: " + err.Error()}}
	}
	resolved, ok := schemas[t]
	if !ok {
		return []FieldError{{Field: "(schema)", Message: "no schema registered for type " + string(t)}}
	}
	if err := resolved.Validate(payload); err != nil {
		return []FieldError{{Field: "(root)", Message: err.Error()}}
	}
	return nil
}
