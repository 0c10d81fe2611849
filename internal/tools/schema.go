// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"encoding/json"

	"github.com/stevebottos/dxtr-cli/internal/llm"
)

// Param is one property of an object parameter schema.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Spec builds a tool spec whose parameters are a flat object of params.
func Spec(name, description string, params ...Param) llm.ToolSpec {
	props := make(map[string]map[string]string, len(params))
	required := []string{}
	for _, p := range params {
		props[p.Name] = map[string]string{"type": p.Type, "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	// Marshalling maps of strings cannot fail.
	data, _ := json.Marshal(schema)
	return llm.ToolSpec{Name: name, Description: description, Parameters: data}
}
