// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DeltaKind tags a StreamDelta.
type DeltaKind int

const (
	// DeltaContent carries a fragment of the assistant's text.
	DeltaContent DeltaKind = iota
	// DeltaToolCall carries a fragment of one tool call.
	DeltaToolCall
	// DeltaDone marks the end of the response.
	DeltaDone
)

func (k DeltaKind) String() string {
	switch k {
	case DeltaContent:
		return "content"
	case DeltaToolCall:
		return "tool_call"
	case DeltaDone:
		return "done"
	default:
		return fmt.Sprintf("DeltaKind(%d)", int(k))
	}
}

// ToolCallFragment is a partial tool call. Index identifies the call within
// the response; ID usually arrives once, on the first fragment.
type ToolCallFragment struct {
	Index         int
	ID            string
	NamePart      string
	ArgumentsPart string
}

// StreamDelta is one incremental piece of a streamed response.
type StreamDelta struct {
	Kind     DeltaKind
	Content  string
	Fragment ToolCallFragment
}

// ContentDelta returns a content delta.
func ContentDelta(text string) StreamDelta {
	return StreamDelta{Kind: DeltaContent, Content: text}
}

// FragmentDelta returns a tool-call delta.
func FragmentDelta(f ToolCallFragment) StreamDelta {
	return StreamDelta{Kind: DeltaToolCall, Fragment: f}
}

// DoneDelta returns the end-of-stream delta.
func DoneDelta() StreamDelta {
	return StreamDelta{Kind: DeltaDone}
}

var (
	// ErrStreamClosed is returned when a delta arrives after DeltaDone.
	ErrStreamClosed = errors.New("delta received after end of stream")

	// ErrToolCallGap is returned when tool-call indices are not contiguous.
	ErrToolCallGap = errors.New("tool call indices are not contiguous")
)

// Emission is what the Accumulator yields for one delta.
type Emission struct {
	// Text is content to display immediately.
	Text string

	// Done is set for the final delta.
	Done bool

	// Content is the whole accumulated text. Only set when Done.
	Content string

	// ToolCalls are the completed calls ordered by index. Only set when Done.
	ToolCalls []ToolCall
}

type slot struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// Accumulator reassembles tool calls from streamed fragments. It is used
// for exactly one response and is not safe for concurrent use.
type Accumulator struct {
	content strings.Builder
	slots   map[int]*slot
	done    bool
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{slots: make(map[int]*slot)}
}

// Process folds one delta. Content is emitted as it arrives. Argument
// fragments are concatenated verbatim and never parsed.
func (a *Accumulator) Process(d StreamDelta) (Emission, error) {
	if a.done {
		return Emission{}, ErrStreamClosed
	}

	switch d.Kind {
	case DeltaContent:
		a.content.WriteString(d.Content)
		return Emission{Text: d.Content}, nil

	case DeltaToolCall:
		f := d.Fragment
		if f.Index < 0 {
			return Emission{}, fmt.Errorf("tool call fragment with negative index %d", f.Index)
		}
		s, ok := a.slots[f.Index]
		if !ok {
			s = &slot{}
			a.slots[f.Index] = s
		}
		if s.id == "" && f.ID != "" {
			s.id = f.ID
		}
		s.name.WriteString(f.NamePart)
		s.args.WriteString(f.ArgumentsPart)
		return Emission{}, nil

	case DeltaDone:
		a.done = true
		calls, err := a.toolCalls()
		if err != nil {
			return Emission{}, err
		}
		return Emission{Done: true, Content: a.content.String(), ToolCalls: calls}, nil

	default:
		return Emission{}, fmt.Errorf("unknown delta kind %v", d.Kind)
	}
}

// Content returns the text accumulated so far.
func (a *Accumulator) Content() string {
	return a.content.String()
}

func (a *Accumulator) toolCalls() ([]ToolCall, error) {
	if len(a.slots) == 0 {
		return nil, nil
	}
	indices := make([]int, 0, len(a.slots))
	for idx := range a.slots {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	calls := make([]ToolCall, 0, len(indices))
	for i, idx := range indices {
		if idx != i {
			return nil, fmt.Errorf("%w: expected index %d, got %d", ErrToolCallGap, i, idx)
		}
		s := a.slots[idx]
		id := s.id
		if id == "" {
			// Some local servers omit ids; tool messages still need one to reference.
			id = fmt.Sprintf("call_%d", idx)
		}
		calls = append(calls, ToolCall{
			Index:     idx,
			ID:        id,
			Name:      s.name.String(),
			Arguments: s.args.String(),
		})
	}
	return calls, nil
}
