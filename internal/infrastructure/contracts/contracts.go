package contracts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	HistoryEventV1 = "HistoryEvent/1.0.0"
	LLMNotesV1     = "AnalysisNotes/1.0.0"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	HistoryEventV1: "schemas/history-event.v1.json",
	LLMNotesV1:     "schemas/llm-notes.v1.json",
}

// Registry holds the compiled JSON schemas for every versioned contract.
type Registry struct {
	schemas map[string]*jsonschema.Schema
}

func NewRegistry() (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	for _, file := range schemaFiles {
		raw, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		if err := compiler.AddResource(path.Base(file), bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", file, err)
		}
	}

	r := &Registry{schemas: make(map[string]*jsonschema.Schema, len(schemaFiles))}
	for key, file := range schemaFiles {
		schema, err := compiler.Compile(path.Base(file))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", key, err)
		}
		r.schemas[key] = schema
	}
	return r, nil
}

// Validate checks body against the contract registered under key.
func (r *Registry) Validate(key string, body []byte) error {
	schema, ok := r.schemas[key]
	if !ok {
		return fmt.Errorf("schema %q not registered", key)
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json schema validation failed: %w", err)
	}
	return nil
}

func (r *Registry) ValidateHistoryEvent(raw []byte) error {
	return r.Validate(HistoryEventV1, raw)
}

func (r *Registry) ValidateNotes(raw []byte) error {
	return r.Validate(LLMNotesV1, raw)
}
