// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools maps tool names from the model to local implementations.
// Every failure becomes an "Error: ..." string so the chat loop can hand
// it back to the model instead of aborting.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/metrics"
)

// Tool is a locally executed capability offered to the model.
type Tool interface {
	Name() string
	Schema() llm.ToolSpec
	// Invoke runs the tool. Results that are not strings are returned to
	// the model as JSON.
	Invoke(ctx context.Context, args json.RawMessage) (any, error)
}

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Registry holds the tools of one session. It is read-only after
// NewRegistry and safe for concurrent dispatch.
type Registry struct {
	order  []string
	byName map[string]Tool
	logger *zap.Logger
}

// NewRegistry validates and registers tools. Names must be unique and
// match the schema name; parameter schemas must be objects whose required
// fields are declared properties.
func NewRegistry(logger *zap.Logger, tools ...Tool) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Tool, len(tools)),
		logger: logging.OrNop(logger),
	}

	var errs []error
	for _, t := range tools {
		if err := validate(t); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.byName[t.Name()]; dup {
			errs = append(errs, fmt.Errorf("tool %q registered twice", t.Name()))
			continue
		}
		r.byName[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

type paramSchema struct {
	Type       string                     `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

func validate(t Tool) error {
	name := t.Name()
	if !namePattern.MatchString(name) {
		return fmt.Errorf("tool name %q is invalid", name)
	}
	spec := t.Schema()
	if spec.Name != name {
		return fmt.Errorf("tool %q: schema is named %q", name, spec.Name)
	}

	var ps paramSchema
	if err := json.Unmarshal(spec.Parameters, &ps); err != nil {
		return fmt.Errorf("tool %q: parameters are not a JSON schema: %w", name, err)
	}
	if ps.Type != "object" {
		return fmt.Errorf("tool %q: parameters must be an object schema, got %q", name, ps.Type)
	}
	for _, req := range ps.Required {
		if _, ok := ps.Properties[req]; !ok {
			return fmt.Errorf("tool %q: required parameter %q is not declared", name, req)
		}
	}
	return nil
}

// Schemas returns the registered tool specs in registration order.
func (r *Registry) Schemas() []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].Schema())
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// unknownToolLabel replaces model-supplied names of unregistered tools in
// metric labels.
const unknownToolLabel = "unknown"

// Dispatch runs the named tool and returns the text to place in the tool
// message. It never returns an error and never panics.
func (r *Registry) Dispatch(ctx context.Context, name, rawArguments string) (result string) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if p := recover(); p != nil {
			outcome = "panic"
			result = fmt.Sprintf("Error: tool '%s' failed: panic: %v", name, p)
		}
		elapsed := time.Since(start)
		label := name
		if _, known := r.byName[name]; !known {
			label = unknownToolLabel
		}
		metrics.ToolDispatchTotal.WithLabelValues(label, outcome).Inc()
		metrics.ToolDispatchDuration.WithLabelValues(label).Observe(elapsed.Seconds())
		r.logger.Info("tool dispatched",
			zap.String("tool", name),
			zap.Duration("duration", elapsed),
			zap.String("outcome", outcome),
			zap.Int("result_bytes", len(result)),
		)
	}()

	t, ok := r.byName[name]
	if !ok {
		outcome = "not_found"
		return fmt.Sprintf("Error: Tool '%s' not found.", name)
	}

	args, err := parseArguments(rawArguments)
	if err != nil {
		outcome = "bad_arguments"
		return fmt.Sprintf("Error: invalid arguments for tool '%s': %v", name, err)
	}

	out, err := t.Invoke(ctx, args)
	if err != nil {
		outcome = "error"
		return fmt.Sprintf("Error: tool '%s' failed: %v", name, err)
	}

	switch v := out.(type) {
	case string:
		return v
	case nil:
		return "null"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			outcome = "error"
			return fmt.Sprintf("Error: tool '%s' returned an unserializable result: %v", name, err)
		}
		return string(data)
	}
}

// parseArguments accepts the raw argument text of a tool call. Empty text
// means no arguments. Anything else must be a JSON object.
func parseArguments(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return json.RawMessage("{}"), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("arguments must be a JSON object")
	}
	return json.RawMessage(raw), nil
}

// Decode unmarshals args into T and checks that every name in required is
// present and non-empty. Tools call it at the top of Invoke.
func Decode[T any](args json.RawMessage, required ...string) (T, error) {
	var v T
	if err := json.Unmarshal(args, &v); err != nil {
		return v, fmt.Errorf("decoding arguments: %w", err)
	}
	var present map[string]any
	if err := json.Unmarshal(args, &present); err != nil {
		return v, fmt.Errorf("decoding arguments: %w", err)
	}
	for _, name := range required {
		val, ok := present[name]
		if !ok || val == nil || val == "" {
			return v, fmt.Errorf("missing required argument %q", name)
		}
	}
	return v, nil
}
