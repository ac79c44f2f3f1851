package adapters

import (
	"context"
	"fmt"
	"strings"

	placescout "github.com/ZanzyTHEbar/placescout-genkit"
)

// ToolFunc is the plain Go function behind a tool.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// GoToolAdapter adapts a standard Go function to the placescout.Tool interface.
// Its spec comes from the catalog, so the LLM always sees the catalog contract.
type GoToolAdapter struct {
	toolFunc  ToolFunc
	spec      placescout.ToolSpec
	validator func(map[string]any) error
}

// ToolOption represents an option for configuring a GoToolAdapter.
type ToolOption func(*GoToolAdapter)

// WithValidator adds a check that runs after the parameter contract is satisfied.
func WithValidator(validator func(map[string]any) error) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.validator = validator
	}
}

// WithDescription overrides the catalog description.
func WithDescription(description string) ToolOption {
	return func(adapter *GoToolAdapter) {
		adapter.spec.Description = description
	}
}

// NewGoToolAdapter creates a new adapter for a Go function registered under a catalog name.
func NewGoToolAdapter(name placescout.ToolName, toolFunc ToolFunc, options ...ToolOption) (*GoToolAdapter, error) {
	spec, ok := placescout.LookupSpec(name)
	if !ok {
		return nil, placescout.NewUnknownToolError("tool_setup", string(name))
	}
	if toolFunc == nil {
		return nil, placescout.NewConfigurationError(fmt.Sprintf("tool '%s' has no function", name), nil)
	}

	adapter := &GoToolAdapter{toolFunc: toolFunc, spec: spec}
	for _, option := range options {
		option(adapter)
	}
	return adapter, nil
}

// Execute implements the placescout.Tool interface.
func (a *GoToolAdapter) Execute(ctx context.Context, args map[string]any) (string, error) {
	if err := a.Validate(args); err != nil {
		return "", fmt.Errorf("input validation failed for %s: %w", a.spec.Name, err)
	}
	return a.toolFunc(ctx, args)
}

// Spec implements the placescout.Tool interface.
func (a *GoToolAdapter) Spec() placescout.ToolSpec {
	return a.spec
}

// Validate checks args against the parameter schema, then the custom validator.
func (a *GoToolAdapter) Validate(args map[string]any) error {
	for _, param := range a.spec.Parameters.Required {
		value, ok := args[param]
		if !ok || value == nil {
			return fmt.Errorf("missing required argument '%s'", param)
		}
		if a.spec.Parameters.Properties[param].Type != placescout.ParameterString {
			continue
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("argument '%s' must be a string, got %T", param, value)
		}
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("argument '%s' cannot be empty", param)
		}
	}
	if a.validator != nil {
		return a.validator(args)
	}
	return nil
}

// Name implements the placescout.Tool interface.
func (a *GoToolAdapter) Name() placescout.ToolName {
	return a.spec.Name
}
