// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chat drives a tool-calling conversation against a streaming
// inference endpoint. Each user turn loops between model responses and
// tool dispatch until the model answers without requesting tools.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevebottos/dxtr-cli/internal/llm"
	"github.com/stevebottos/dxtr-cli/internal/logging"
	"github.com/stevebottos/dxtr-cli/internal/metrics"
	"github.com/stevebottos/dxtr-cli/pkg/types"
)

// State is a step of a turn.
type State string

const (
	StateAwaitingResponse State = "AWAITING_RESPONSE"
	StateAccumulating     State = "ACCUMULATING"
	StateDispatching      State = "DISPATCHING"
	StateMaxRounds        State = "MAX_ROUNDS"
	StateDone             State = "DONE"
	StateError            State = "ERROR"
)

// Dispatcher runs tools by name. *tools.Registry implements it.
type Dispatcher interface {
	Schemas() []llm.ToolSpec
	Dispatch(ctx context.Context, name, rawArguments string) string
}

// Describer renders live state appended to the system prompt.
type Describer interface {
	Describe() string
}

// Options configures an Orchestrator.
type Options struct {
	// SystemPrompt defaults to DefaultSystemPrompt.
	SystemPrompt string

	// Workspace, when set, is described after the system prompt on every
	// request so the model sees files created during the turn.
	Workspace Describer

	// MaxToolRounds caps dispatch rounds per turn (default 5).
	MaxToolRounds int

	// TurnTimeout bounds a whole turn. Zero means no deadline.
	TurnTimeout time.Duration

	Temperature float32
	MaxTokens   int
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg types.Config) Options {
	return Options{
		MaxToolRounds: cfg.Chat.MaxToolRounds,
		TurnTimeout:   cfg.Chat.TurnTimeout,
		Temperature:   cfg.Inference.Temperature,
		MaxTokens:     cfg.Inference.MaxTokens,
	}
}

// TurnResult reports how a turn ended.
type TurnResult struct {
	// Content is the final assistant message text.
	Content string

	// States is the ordered trace of states entered.
	States []State

	// Rounds is the number of inference requests sent.
	Rounds int

	// ToolCalls are every call dispatched, in order.
	ToolCalls []llm.ToolCall

	// Degraded is set when the turn ended in error or hit the round limit.
	Degraded bool
}

// Orchestrator runs turns. It holds no per-session state and may serve
// many sessions concurrently.
type Orchestrator struct {
	endpoint llm.Endpoint
	tools    Dispatcher
	opts     Options
	logger   *zap.Logger
}

// New returns an Orchestrator.
func New(endpoint llm.Endpoint, tools Dispatcher, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = types.DefaultConfig().Chat.MaxToolRounds
	}
	return &Orchestrator{endpoint: endpoint, tools: tools, opts: opts, logger: logging.OrNop(logger)}
}

// turn carries the bookkeeping of one Turn call.
type turn struct {
	session *Session
	result  TurnResult
	partial []string
}

func (t *turn) enter(s State) {
	t.result.States = append(t.result.States, s)
}

// Turn appends input to the session history and runs the conversation
// until the model answers. It never returns an error: failures end the
// turn with an "Error: ..." assistant message, which is also the result
// content.
func (o *Orchestrator) Turn(ctx context.Context, session *Session, input string) TurnResult {
	if o.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TurnTimeout)
		defer cancel()
	}
	start := time.Now()
	t := &turn{session: session}
	session.History = append(session.History, llm.UserMessage(input))

	o.run(ctx, t)

	final := t.result.States[len(t.result.States)-1]
	outcome := strings.ToLower(string(final))
	if final == StateDone && t.result.Degraded {
		outcome = "max_rounds"
	}
	metrics.ChatRounds.Observe(float64(t.result.Rounds))
	metrics.ChatTurnsTotal.WithLabelValues(outcome).Inc()
	o.logger.Info("chat turn",
		zap.String("session", session.ID),
		zap.Int("rounds", t.result.Rounds),
		zap.Int("tool_calls", len(t.result.ToolCalls)),
		zap.String("state", string(final)),
		zap.Duration("duration", time.Since(start)),
	)
	return t.result
}

func (o *Orchestrator) run(ctx context.Context, t *turn) {
	for dispatched := 0; dispatched < o.opts.MaxToolRounds; dispatched++ {
		resp, err := o.round(ctx, t, o.tools.Schemas())
		if err != nil {
			o.fail(ctx, t, err)
			return
		}

		if len(resp.ToolCalls) == 0 {
			o.finish(t, resp.Content)
			return
		}

		t.session.History = append(t.session.History, llm.AssistantMessage(resp.Content, resp.ToolCalls...))
		if strings.TrimSpace(resp.Content) != "" {
			t.partial = append(t.partial, strings.TrimSpace(resp.Content))
		}
		t.enter(StateDispatching)
		for _, call := range resp.ToolCalls {
			t.session.emit(Event{Kind: EventToolStart, Tool: call.Name, CallID: call.ID, Text: call.Arguments})
			out := o.tools.Dispatch(ctx, call.Name, call.Arguments)
			t.session.History = append(t.session.History, llm.ToolMessage(call, out))
			t.session.emit(Event{Kind: EventToolResult, Tool: call.Name, CallID: call.ID, Text: out})
			t.result.ToolCalls = append(t.result.ToolCalls, call)
		}
		if err := ctx.Err(); err != nil {
			o.fail(ctx, t, err)
			return
		}
	}

	// Out of tool rounds: one last request without tools so the model has
	// to answer from what it has.
	t.enter(StateMaxRounds)
	t.result.Degraded = true
	t.session.emit(Event{Kind: EventStatus, Text: fmt.Sprintf("reached %d tool rounds, asking for a final answer", o.opts.MaxToolRounds)})
	o.logger.Warn("max tool rounds reached", zap.String("session", t.session.ID), zap.Int("rounds", o.opts.MaxToolRounds))

	resp, err := o.round(ctx, t, nil)
	if err == nil && strings.TrimSpace(resp.Content) != "" && len(resp.ToolCalls) == 0 {
		o.finish(t, resp.Content)
		return
	}
	if err != nil {
		o.logger.Warn("final answer failed", zap.String("session", t.session.ID), zap.Error(err))
	}
	content := maxRoundsNote
	if len(t.partial) > 0 {
		content += "\n\n" + strings.Join(t.partial, "\n\n")
	}
	t.session.emit(Event{Kind: EventContent, Text: "\n" + content})
	o.finish(t, content)
}

// round sends one request built from the session history and folds the
// streamed response.
func (o *Orchestrator) round(ctx context.Context, t *turn, tools []llm.ToolSpec) (llm.Response, error) {
	t.enter(StateAwaitingResponse)
	t.result.Rounds++

	system := o.opts.SystemPrompt
	if o.opts.Workspace != nil {
		system += "\n\n" + o.opts.Workspace.Describe()
	}
	msgs := make([]llm.Message, 0, len(t.session.History)+1)
	msgs = append(msgs, llm.SystemMessage(system))
	msgs = append(msgs, t.session.History...)

	stream, err := o.endpoint.Stream(ctx, llm.Request{
		Messages:    msgs,
		Tools:       tools,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	})
	if err != nil {
		return llm.Response{}, err
	}
	defer stream.Close()

	t.enter(StateAccumulating)
	return llm.Drain(stream, func(text string) {
		t.session.emit(Event{Kind: EventContent, Text: text})
	})
}

func (o *Orchestrator) finish(t *turn, content string) {
	t.session.History = append(t.session.History, llm.AssistantMessage(content))
	t.result.Content = content
	t.enter(StateDone)
}

// fail ends the turn with an error message in place of the answer. Any
// content streamed in the failed round is dropped.
func (o *Orchestrator) fail(ctx context.Context, t *turn, err error) {
	msg := "Error: " + describeError(ctx, err, o.opts.TurnTimeout)
	t.session.History = append(t.session.History, llm.AssistantMessage(msg))
	t.session.emit(Event{Kind: EventError, Text: msg})
	t.result.Content = msg
	t.result.Degraded = true
	t.enter(StateError)
	o.logger.Warn("chat turn failed", zap.String("session", t.session.ID), zap.Error(err))
}

func describeError(ctx context.Context, err error, timeout time.Duration) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("turn timed out after %s", timeout)
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return "turn cancelled"
	case errors.Is(err, llm.ErrToolCallGap), errors.Is(err, llm.ErrStreamClosed):
		return fmt.Sprintf("malformed response stream: %v", err)
	default:
		return fmt.Sprintf("inference request failed: %v", err)
	}
}
