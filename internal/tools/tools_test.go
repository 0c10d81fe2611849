// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/metrics"
)

// funcTool adapts a function to the Tool interface.
type funcTool struct {
	name   string
	spec   llm.ToolSpec
	invoke func(ctx context.Context, args json.RawMessage) (any, error)
}

func (f funcTool) Name() string         { return f.name }
func (f funcTool) Schema() llm.ToolSpec { return f.spec }
func (f funcTool) Invoke(ctx context.Context, args json.RawMessage) (any, error) {
	return f.invoke(ctx, args)
}

func newFuncTool(name string, fn func(ctx context.Context, args json.RawMessage) (any, error)) funcTool {
	return funcTool{
		name:   name,
		spec:   Spec(name, "test tool", Param{Name: "q", Type: "string", Description: "query"}),
		invoke: fn,
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	ok := newFuncTool("echo", nil)

	tests := []struct {
		name    string
		tools   []Tool
		wantErr string
	}{
		{name: "valid", tools: []Tool{ok, ReadFile{}}},
		{name: "duplicate", tools: []Tool{ok, ok}, wantErr: "registered twice"},
		{name: "bad name", tools: []Tool{funcTool{name: "has space", spec: Spec("has space", "")}}, wantErr: "invalid"},
		{name: "schema name mismatch", tools: []Tool{funcTool{name: "a", spec: Spec("b", "")}}, wantErr: "schema is named"},
		{
			name: "not an object",
			tools: []Tool{funcTool{name: "a", spec: llm.ToolSpec{
				Name: "a", Parameters: json.RawMessage(`{"type":"string"}`),
			}}},
			wantErr: "object schema",
		},
		{
			name: "undeclared required",
			tools: []Tool{funcTool{name: "a", spec: llm.ToolSpec{
				Name: "a", Parameters: json.RawMessage(`{"type":"object","properties":{},"required":["x"]}`),
			}}},
			wantErr: `required parameter "x"`,
		},
		{
			name: "unparsable schema",
			tools: []Tool{funcTool{name: "a", spec: llm.ToolSpec{
				Name: "a", Parameters: json.RawMessage(`{`),
			}}},
			wantErr: "not a JSON schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(nil, tt.tools...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDispatch(t *testing.T) {
	echo := newFuncTool("echo", func(_ context.Context, args json.RawMessage) (any, error) {
		return string(args), nil
	})
	structured := newFuncTool("structured", func(context.Context, json.RawMessage) (any, error) {
		return map[string]int{"count": 3}, nil
	})
	failing := newFuncTool("failing", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("disk on fire")
	})
	panicking := newFuncTool("panicking", func(context.Context, json.RawMessage) (any, error) {
		panic("unexpected")
	})

	r, err := NewRegistry(nil, echo, structured, failing, panicking)
	require.NoError(t, err)

	tests := []struct {
		name   string
		tool   string
		args   string
		want   string
		prefix bool
	}{
		{name: "string result", tool: "echo", args: `{"q":"hi"}`, want: `{"q":"hi"}`},
		{name: "empty arguments", tool: "echo", args: "", want: "{}"},
		{name: "whitespace arguments", tool: "echo", args: "  ", want: "{}"},
		{name: "json result", tool: "structured", args: "{}", want: `{"count":3}`},
		{name: "unknown tool", tool: "nope", args: "{}", want: "Error: Tool 'nope' not found."},
		{name: "malformed json", tool: "echo", args: `{"q":`, want: "Error: invalid arguments for tool 'echo': unexpected end of JSON input"},
		{name: "non-object json", tool: "echo", args: `[1,2]`, want: "Error: invalid arguments for tool 'echo': json: cannot unmarshal array", prefix: true},
		{name: "null json", tool: "echo", args: `null`, want: "Error: invalid arguments for tool 'echo': arguments must be a JSON object"},
		{name: "tool error", tool: "failing", args: "{}", want: "Error: tool 'failing' failed: disk on fire"},
		{name: "tool panic", tool: "panicking", args: "{}", want: "Error: tool 'panicking' failed: panic: unexpected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Dispatch(context.Background(), tt.tool, tt.args)
			if tt.prefix {
				assert.True(t, strings.HasPrefix(got, tt.want), got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatch_LogsAndCounts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	echo := newFuncTool("logged_echo", func(context.Context, json.RawMessage) (any, error) { return "ok", nil })
	r, err := NewRegistry(zap.New(core), echo)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.ToolDispatchTotal.WithLabelValues("logged_echo", "ok"))
	r.Dispatch(context.Background(), "logged_echo", "{}")
	after := testutil.ToFloat64(metrics.ToolDispatchTotal.WithLabelValues("logged_echo", "ok"))
	assert.Equal(t, before+1, after)

	entries := logs.FilterMessage("tool dispatched").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "logged_echo", fields["tool"])
	assert.Equal(t, "ok", fields["outcome"])
	assert.Contains(t, fields, "duration")
}

func TestDispatch_UnknownToolsShareOneLabel(t *testing.T) {
	r, err := NewRegistry(nil, ReadFile{})
	require.NoError(t, err)

	series := testutil.CollectAndCount(metrics.ToolDispatchTotal)
	before := testutil.ToFloat64(metrics.ToolDispatchTotal.WithLabelValues("unknown", "not_found"))

	r.Dispatch(context.Background(), "search_the_web", "{}")
	r.Dispatch(context.Background(), "rank_papers_v2", "{}")

	after := testutil.ToFloat64(metrics.ToolDispatchTotal.WithLabelValues("unknown", "not_found"))
	assert.Equal(t, before+2, after)
	assert.LessOrEqual(t, testutil.CollectAndCount(metrics.ToolDispatchTotal), series+1)
}

func TestSchemasInRegistrationOrder(t *testing.T) {
	r, err := NewRegistry(nil, ReadFile{}, newFuncTool("b", nil), newFuncTool("a", nil))
	require.NoError(t, err)

	var names []string
	for _, s := range r.Schemas() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"read_file", "b", "a"}, names)
	assert.Equal(t, names, r.Names())
}

func TestDecode(t *testing.T) {
	type args struct {
		PaperID string `json:"paper_id"`
		Date    string `json:"date"`
	}

	got, err := Decode[args](json.RawMessage(`{"paper_id":"1234.5678"}`), "paper_id")
	require.NoError(t, err)
	assert.Equal(t, "1234.5678", got.PaperID)

	_, err = Decode[args](json.RawMessage(`{"date":"2025-01-01"}`), "paper_id")
	assert.ErrorContains(t, err, `missing required argument "paper_id"`)

	_, err = Decode[args](json.RawMessage(`{"paper_id":""}`), "paper_id")
	assert.Error(t, err)

	_, err = Decode[args](json.RawMessage(`{"paper_id":5}`), "paper_id")
	assert.ErrorContains(t, err, "decoding arguments")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.md")
	require.NoError(t, os.WriteFile(path, []byte("# Me\nI like retrieval."), 0o644))

	r, err := NewRegistry(nil, ReadFile{})
	require.NoError(t, err)

	t.Run("existing file", func(t *testing.T) {
		args, _ := json.Marshal(map[string]string{"file_path": path})
		assert.Equal(t, "# Me\nI like retrieval.", r.Dispatch(context.Background(), "read_file", string(args)))
	})

	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(dir, "nope.md")
		args, _ := json.Marshal(map[string]string{"file_path": missing})
		assert.Equal(t, "Error: File not found: "+missing, r.Dispatch(context.Background(), "read_file", string(args)))
	})

	t.Run("directory", func(t *testing.T) {
		args, _ := json.Marshal(map[string]string{"file_path": dir})
		assert.Contains(t, r.Dispatch(context.Background(), "read_file", string(args)), "is a directory")
	})

	t.Run("missing argument", func(t *testing.T) {
		assert.Equal(t, `Error: tool 'read_file' failed: missing required argument "file_path"`,
			r.Dispatch(context.Background(), "read_file", "{}"))
	})
}
