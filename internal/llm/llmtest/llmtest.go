// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llmtest provides scripted llm.Endpoint implementations for tests.
package llmtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/stevebottos/dxtr-cli/internal/llm"
)

// Reply is the scripted outcome of one request.
type Reply struct {
	// Deltas are returned in order; a DeltaDone is appended unless Truncate is set.
	Deltas []llm.StreamDelta

	// OpenErr fails the request before any delta is produced.
	OpenErr error

	// RecvErr is returned after Deltas are exhausted instead of DeltaDone.
	RecvErr error

	// Truncate ends the stream with io.EOF and no DeltaDone.
	Truncate bool
}

// Text returns a reply streaming s in four-byte fragments.
func Text(s string) Reply {
	return Reply{Deltas: TextDeltas(s, 4)}
}

// TextDeltas splits s into content deltas.
func TextDeltas(s string, chunk int) []llm.StreamDelta {
	var out []llm.StreamDelta
	for len(s) > 0 {
		n := chunk
		if n > len(s) {
			n = len(s)
		}
		out = append(out, llm.ContentDelta(s[:n]))
		s = s[n:]
	}
	return out
}

// Calls returns a reply with optional content followed by the given tool
// calls, each streamed as an id/name fragment and argument fragments of
// three bytes.
func Calls(content string, calls ...llm.ToolCall) Reply {
	r := Reply{Deltas: TextDeltas(content, 4)}
	for i, c := range calls {
		r.Deltas = append(r.Deltas, llm.FragmentDelta(llm.ToolCallFragment{Index: i, ID: c.ID, NamePart: c.Name}))
		args := c.Arguments
		for len(args) > 0 {
			n := 3
			if n > len(args) {
				n = len(args)
			}
			r.Deltas = append(r.Deltas, llm.FragmentDelta(llm.ToolCallFragment{Index: i, ArgumentsPart: args[:n]}))
			args = args[n:]
		}
	}
	return r
}

// Failure returns a reply that fails to open with err.
func Failure(err error) Reply {
	return Reply{OpenErr: err}
}

// Endpoint answers each request with Respond. It records every request and
// is safe for concurrent use.
type Endpoint struct {
	Respond func(req llm.Request, call int) Reply

	mu       sync.Mutex
	requests []llm.Request
}

// Sequence returns an Endpoint that answers the n-th request with replies[n].
// Requests beyond the script fail.
func Sequence(replies ...Reply) *Endpoint {
	return &Endpoint{Respond: func(_ llm.Request, call int) Reply {
		if call >= len(replies) {
			return Failure(errors.New("llmtest: script exhausted"))
		}
		return replies[call]
	}}
}

// Func returns an Endpoint backed by fn.
func Func(fn func(req llm.Request) Reply) *Endpoint {
	return &Endpoint{Respond: func(req llm.Request, _ int) Reply { return fn(req) }}
}

// Stream implements llm.Endpoint.
func (e *Endpoint) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	e.mu.Lock()
	call := len(e.requests)
	e.requests = append(e.requests, req)
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := e.Respond(req, call)
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	return &stream{ctx: ctx, reply: r}, nil
}

// Requests returns a copy of the recorded requests.
func (e *Endpoint) Requests() []llm.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]llm.Request, len(e.requests))
	copy(out, e.requests)
	return out
}

// Calls returns the number of requests received.
func (e *Endpoint) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

type stream struct {
	ctx   context.Context
	reply Reply
	pos   int
	ended bool
}

func (s *stream) Recv() (llm.StreamDelta, error) {
	if err := s.ctx.Err(); err != nil {
		return llm.StreamDelta{}, err
	}
	if s.pos < len(s.reply.Deltas) {
		d := s.reply.Deltas[s.pos]
		s.pos++
		return d, nil
	}
	if s.reply.RecvErr != nil {
		return llm.StreamDelta{}, s.reply.RecvErr
	}
	if s.ended || s.reply.Truncate {
		return llm.StreamDelta{}, io.EOF
	}
	s.ended = true
	return llm.DoneDelta(), nil
}

func (s *stream) Close() error { return nil }
