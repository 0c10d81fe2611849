// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// sseServer replies to every chat completion with the given frames, a
// finishing chunk and [DONE], and records the decoded request body.
func sseServer(t *testing.T, frames []string, captured *map[string]any) *httptest.Server {
	t.Helper()
	frames = append(frames, finishChunk("stop"))
	return rawSSEServer(t, frames, true, captured)
}

// rawSSEServer writes frames verbatim; the [DONE] sentinel only when done
// is set.
func rawSSEServer(t *testing.T, frames []string, done bool, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			body, _ := io.ReadAll(r.Body)
			m := map[string]any{}
			require.NoError(t, json.Unmarshal(body, &m))
			*captured = m
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		if done {
			fmt.Fprint(w, "data: [DONE]\n\n")
		}
	}))
}

func finishChunk(reason string) string {
	return fmt.Sprintf(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{},"finish_reason":%q}]}`, reason)
}

func chunk(delta string) string {
	return fmt.Sprintf(`{"id":"x","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":%s}]}`, delta)
}

func testClient(ts *httptest.Server) *Client {
	return NewClient(types.InferenceConfig{BaseURL: ts.URL + "/v1", Model: "default"}, WithHTTPClient(ts.Client()))
}

func TestClient_StreamsContentAndToolCalls(t *testing.T) {
	frames := []string{
		chunk(`{"role":"assistant","content":"Look"}`),
		chunk(`{"content":"ing."}`),
		chunk(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"read_","arguments":""}}]}`),
		chunk(`{"tool_calls":[{"index":0,"function":{"name":"file","arguments":"{\"path\":"}}]}`),
		chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"\"profile.md\"}"}}]}`),
	}
	ts := sseServer(t, frames, nil)
	defer ts.Close()

	s, err := testClient(ts).Stream(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)
	defer s.Close()

	var live bytes.Buffer
	resp, err := Drain(s, func(text string) { live.WriteString(text) })
	require.NoError(t, err)

	assert.Equal(t, "Looking.", live.String())
	assert.Equal(t, "Looking.", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, ToolCall{Index: 0, ID: "call_1", Name: "read_file", Arguments: `{"path":"profile.md"}`}, resp.ToolCalls[0])

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestClient_RequestShape(t *testing.T) {
	var body map[string]any
	ts := sseServer(t, []string{chunk(`{"content":"{\"value\": 4}"}`)}, &body)
	defer ts.Close()

	req := Request{
		Messages: []Message{
			SystemMessage("sys"),
			AssistantMessage("", ToolCall{ID: "c1", Name: "read_file", Arguments: `{"path":"x"}`}),
			ToolMessage(ToolCall{ID: "c1", Name: "read_file"}, "contents"),
		},
		Tools: []ToolSpec{{
			Name:        "read_file",
			Description: "Read a file",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		}},
		Temperature:      0.2,
		MaxTokens:        600,
		FrequencyPenalty: 1.1,
		PresencePenalty:  0.1,
		Format:           &JSONSchema{Name: "score", Schema: json.RawMessage(`{"type":"object","properties":{"value":{"type":"integer"}},"required":["value"]}`)},
	}

	out, err := Complete(context.Background(), testClient(ts), req, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"value": 4}`, out)

	assert.Equal(t, true, body["stream"])
	assert.Equal(t, "default", body["model"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-6)
	assert.InDelta(t, 600, body["max_tokens"], 0)
	assert.InDelta(t, 1.1, body["frequency_penalty"], 1e-6)

	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "read_file", fn["name"])

	rf := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	toolMsg := msgs[2].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "c1", toolMsg["tool_call_id"])
}

func TestClient_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	ts := sseServer(t, []string{chunk(`{"content":"ok"}`)}, &body)
	defer ts.Close()

	_, err := Complete(context.Background(), testClient(ts), Request{Messages: []Message{UserMessage("x")}}, nil)
	require.NoError(t, err)

	temp, ok := body["temperature"]
	require.True(t, ok, "temperature must be present in the payload")
	assert.InDelta(t, 0, temp, 1e-6)
}

func TestClient_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	_, err := testClient(ts).Stream(context.Background(), Request{Messages: []Message{UserMessage("x")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening completion stream")
}

func TestComplete_WritesToWriter(t *testing.T) {
	ts := sseServer(t, []string{chunk(`{"content":"par"}`), chunk(`{"content":"tial"}`)}, nil)
	defer ts.Close()

	var sb strings.Builder
	out, err := Complete(context.Background(), testClient(ts), Request{}, &sb)
	require.NoError(t, err)
	assert.Equal(t, "partial", out)
	assert.Equal(t, "partial", sb.String())
}

func TestClient_TruncatedStream(t *testing.T) {
	tests := []struct {
		name   string
		frames []string
		done   bool
	}{
		{
			name: "connection closed mid tool call",
			frames: []string{
				chunk(`{"role":"assistant","content":"The answer is"}`),
				chunk(`{"tool_calls":[{"index":0,"id":"c1","type":"function","function":{"name":"read_file","arguments":"{\"file_"}}]}`),
			},
		},
		{
			name:   "done sentinel without finish reason",
			frames: []string{chunk(`{"content":"The answer is"}`)},
			done:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := rawSSEServer(t, tt.frames, tt.done, nil)
			defer ts.Close()

			s, err := testClient(ts).Stream(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
			require.NoError(t, err)
			defer s.Close()

			resp, err := Drain(s, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "stream truncated after 13 bytes")
			assert.Empty(t, resp.ToolCalls)
		})
	}
}

func TestClient_FinishReasonEndsStream(t *testing.T) {
	frames := []string{
		chunk(`{"tool_calls":[{"index":0,"id":"c1","type":"function","function":{"name":"read_file","arguments":"{}"}}]}`),
		finishChunk("tool_calls"),
	}
	ts := rawSSEServer(t, frames, true, nil)
	defer ts.Close()

	s, err := testClient(ts).Stream(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)
	defer s.Close()

	resp, err := Drain(s, nil)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "read_file", resp.ToolCalls[0].Name)
}
