package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/urmzd/alpacaswitch/pkg/device"
)

// SetSwitch is the schema for a switch write: a roster index and the
// requested state.
const SetSwitch = "set_switch"

var builtin = map[string]json.RawMessage{
	SetSwitch: json.RawMessage(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"id": {"type": "integer", "minimum": 0},
			"state": {"type": "boolean"}
		},
		"required": ["id", "state"],
		"additionalProperties": false
	}`),
}

// Validator validates JSON payloads against named JSON Schema documents.
// Schemas compile on first use and stay cached.
type Validator struct {
	mu      sync.RWMutex
	docs    map[string]json.RawMessage
	schemas map[string]*jsonschema.Schema
}

// NewValidator creates a Validator that knows the built-in schemas.
func NewValidator() *Validator {
	v := &Validator{
		docs:    make(map[string]json.RawMessage, len(builtin)),
		schemas: make(map[string]*jsonschema.Schema),
	}
	for name, doc := range builtin {
		v.docs[name] = doc
	}
	return v
}

// Register adds or replaces a named schema document.
func (v *Validator) Register(name string, doc json.RawMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.docs[name] = doc
	delete(v.schemas, name)
}

// Validate checks payload against the named schema. Failures wrap
// device.ErrValidation.
func (v *Validator) Validate(name string, payload map[string]any) error {
	compiled, err := v.compile(name)
	if err != nil {
		return err
	}
	if compiled == nil {
		return nil // Empty schema = no validation
	}
	if err := compiled.Validate(payload); err != nil {
		return fmt.Errorf("%w: %v", device.ErrValidation, err)
	}
	return nil
}

func (v *Validator) compile(name string) (*jsonschema.Schema, error) {
	v.mu.RLock()
	if s, ok := v.schemas[name]; ok {
		v.mu.RUnlock()
		return s, nil
	}
	doc, ok := v.docs[name]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	if len(doc) == 0 || string(doc) == "{}" || string(doc) == "null" {
		return nil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := v.schemas[name]; ok {
		return s, nil
	}

	var schemaMap any
	if err := json.Unmarshal(doc, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema %q: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	resource := name + ".json"
	if err := c.AddResource(resource, schemaMap); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}
	compiled, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %q: %w", name, err)
	}

	v.schemas[name] = compiled
	return compiled, nil
}
