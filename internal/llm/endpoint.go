// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Stream yields the deltas of one streamed response. Recv returns a
// DeltaDone delta exactly once and io.EOF on every call after it. A
// response cut off before the server finished yields io.EOF with no
// DeltaDone.
type Stream interface {
	Recv() (StreamDelta, error)
	Close() error
}

// Endpoint opens streamed completions. Implementations: Client
// (OpenAI-compatible HTTP) and scripted endpoints in tests.
type Endpoint interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

// Response is a fully drained completion.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// Drain folds every delta of s through a fresh Accumulator. onText, when
// non-nil, is called for each content fragment as it arrives. A stream
// that ends without a DeltaDone is reported as truncated.
func Drain(s Stream, onText func(string)) (Response, error) {
	acc := NewAccumulator()
	for {
		d, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return Response{}, fmt.Errorf("stream truncated after %d bytes of content", len(acc.Content()))
		}
		if err != nil {
			return Response{}, fmt.Errorf("receiving delta: %w", err)
		}

		em, err := acc.Process(d)
		if err != nil {
			return Response{}, err
		}
		if em.Text != "" && onText != nil {
			onText(em.Text)
		}
		if em.Done {
			return Response{Content: em.Content, ToolCalls: em.ToolCalls}, nil
		}
	}
}

// Complete sends req and returns the whole response text. When w is
// non-nil content is copied to it as it streams.
func Complete(ctx context.Context, ep Endpoint, req Request, w io.Writer) (string, error) {
	s, err := ep.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	defer s.Close()

	var onText func(string)
	if w != nil {
		onText = func(text string) { io.WriteString(w, text) }
	}
	resp, err := Drain(s, onText)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// StripFences removes a surrounding Markdown code fence, with or without a
// language tag, and trims space. Text without a leading fence is only
// trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
