package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry is the process-wide tool catalog, shared read-only across
// sessions. Listing order is the registration order.
type Registry struct {
	order   []string
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry compiles each tool's input schema and builds the catalog.
func NewRegistry(toolList ...Tool) (*Registry, error) {
	r := &Registry{
		tools:   make(map[string]Tool, len(toolList)),
		schemas: make(map[string]*jsonschema.Schema, len(toolList)),
	}
	for _, t := range toolList {
		spec := t.Spec()
		if spec.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, ok := r.tools[spec.Name]; ok {
			return nil, fmt.Errorf("duplicate tool name %s", spec.Name)
		}
		compiler := jsonschema.NewCompiler()
		resource := spec.Name + ".schema.json"
		if err := compiler.AddResource(resource, strings.NewReader(string(spec.InputSchema))); err != nil {
			return nil, fmt.Errorf("add schema for %s: %w", spec.Name, err)
		}
		schema, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", spec.Name, err)
		}
		r.order = append(r.order, spec.Name)
		r.tools[spec.Name] = t
		r.schemas[spec.Name] = schema
	}
	return r, nil
}

// List returns the specs in stable registration order.
func (r *Registry) List() []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Spec())
	}
	return out
}

// Lookup returns the spec for a name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	t, ok := r.tools[name]
	if !ok {
		return Spec{}, false
	}
	return t.Spec(), true
}

// Validate checks arguments against a tool's input schema without invoking
// it. Returns ErrUnknownTool or *InvalidArgumentsError.
func (r *Registry) Validate(name string, args map[string]any) error {
	schema, ok := r.schemas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]any{}
	}
	// Round-trip through JSON so numeric types match what the schema
	// validator expects regardless of how the args map was built.
	raw, err := json.Marshal(args)
	if err != nil {
		return &InvalidArgumentsError{Tool: name, Reason: err.Error()}
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &InvalidArgumentsError{Tool: name, Reason: err.Error()}
	}
	if err := schema.Validate(doc); err != nil {
		return &InvalidArgumentsError{Tool: name, Reason: err.Error()}
	}
	return nil
}

// Invoke validates the arguments and runs the tool under its configured
// timeout. Execution failures come back inside the Result; the returned
// error is reserved for contract violations (unknown tool, bad arguments).
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (Result, error) {
	if err := r.Validate(name, args); err != nil {
		return Result{}, err
	}
	t := r.tools[name]
	spec := t.Spec()
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}
	return t.Invoke(ctx, args), nil
}
