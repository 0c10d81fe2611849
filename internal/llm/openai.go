// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/stevebottos/dxtr-cli/pkg/types"
)

var tracer = otel.GetTracerProvider().Tracer("dxtr/llm")

// Option configures a Client.
type Option func(*openai.ClientConfig)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *openai.ClientConfig) {
		c.HTTPClient = hc
	}
}

// Client is an Endpoint backed by an OpenAI-compatible chat completions API.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient creates a Client from cfg. BaseURL must include the version
// segment (e.g. "http://localhost:30000/v1").
func NewClient(cfg types.InferenceConfig, opts ...Option) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	for _, opt := range opts {
		opt(&oc)
	}
	return &Client{
		api:   openai.NewClientWithConfig(oc),
		model: cfg.Model,
	}
}

// Stream opens a streamed chat completion.
func (c *Client) Stream(ctx context.Context, req Request) (Stream, error) {
	ctx, span := tracer.Start(ctx, "llm.stream", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.request.messages", len(req.Messages)),
		attribute.Int("llm.request.tools", len(req.Tools)),
		attribute.Int("llm.request.max_tokens", req.MaxTokens),
		attribute.Bool("llm.request.structured", req.Format != nil),
	)

	s, err := c.api.CreateChatCompletionStream(ctx, c.toRequest(req))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, fmt.Errorf("opening completion stream: %w", err)
	}
	return &openaiStream{stream: s, span: span}, nil
}

func (c *Client) toRequest(req Request) openai.ChatCompletionRequest {
	temp := req.Temperature
	if temp == 0 {
		// go-openai drops a zero temperature from the payload, leaving the server default.
		temp = math.SmallestNonzeroFloat32
	}

	out := openai.ChatCompletionRequest{
		Model:            c.model,
		Messages:         toOpenAIMessages(req.Messages),
		Temperature:      temp,
		MaxTokens:        req.MaxTokens,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stream:           true,
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	if req.Format != nil {
		out.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Format.Name,
				Schema: req.Format.Schema,
				Strict: true,
			},
		}
	}
	return out
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

// openaiStream converts go-openai chunks into StreamDeltas. One chunk may
// carry content and several tool-call fragments, so deltas are queued.
type openaiStream struct {
	stream  *openai.ChatCompletionStream
	span    trace.Span
	pending []StreamDelta
	done    bool
	chunks  int
	once    sync.Once

	// finished is set once a chunk carries a finish reason. go-openai
	// reports both [DONE] and a dropped connection as io.EOF, so this is
	// what tells a complete response from a cut-off one.
	finished bool
}

func (s *openaiStream) Recv() (StreamDelta, error) {
	for len(s.pending) == 0 {
		if s.done {
			return StreamDelta{}, io.EOF
		}

		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.span.SetAttributes(attribute.Int("llm.response.chunks", s.chunks))
			if !s.finished {
				s.span.SetStatus(codes.Error, "stream ended without a finish reason")
				return StreamDelta{}, io.EOF
			}
			return DoneDelta(), nil
		}
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
			return StreamDelta{}, err
		}
		s.chunks++

		if len(resp.Choices) == 0 {
			continue
		}
		if resp.Choices[0].FinishReason != "" {
			s.finished = true
		}
		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			s.pending = append(s.pending, ContentDelta(delta.Content))
		}
		for i, tc := range delta.ToolCalls {
			idx := i
			if tc.Index != nil {
				idx = *tc.Index
			}
			s.pending = append(s.pending, FragmentDelta(ToolCallFragment{
				Index:         idx,
				ID:            tc.ID,
				NamePart:      tc.Function.Name,
				ArgumentsPart: tc.Function.Arguments,
			}))
		}
	}

	d := s.pending[0]
	s.pending = s.pending[1:]
	return d, nil
}

func (s *openaiStream) Close() error {
	s.once.Do(func() { s.span.End() })
	return s.stream.Close()
}
