package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/marketingmesh/core"
)

// ErrScriptExhausted is returned by ScriptedModel when Generate is called more
// often than steps were scripted.
var ErrScriptExhausted = errors.New("scripted model: no more steps")

// Step is one scripted model turn.
type Step struct {
	// Text is the final assistant text.
	Text string
	// Calls are the function calls requested in this turn.
	Calls []core.FunctionCall
	// Chunks are streamed as partial responses when the request asks for
	// streaming. Defaults to Text as a single chunk.
	Chunks []string
	// Err fails the turn.
	Err error
	// Respond computes the step from the request. It takes precedence over
	// the static fields.
	Respond func(req Request) Step
}

// TextStep returns a step answering with text.
func TextStep(text string) Step { return Step{Text: text} }

// CallStep returns a step requesting a single function call.
func CallStep(name, args string) Step {
	return Step{Calls: []core.FunctionCall{{ID: "call_" + core.NewID(), Name: name, Arguments: args}}}
}

// ErrorStep returns a failing step.
func ErrorStep(err error) Step { return Step{Err: err} }

// ScriptedModel replays a fixed sequence of steps and records every request.
// It is the deterministic model double used throughout the test suites and
// is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	requests []Request
	repeat   bool
}

// NewScriptedModel creates a model that answers with steps in order.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Repeat makes the model replay its last step forever instead of failing
// with ErrScriptExhausted.
func (m *ScriptedModel) Repeat() *ScriptedModel {
	m.mu.Lock()
	m.repeat = true
	m.mu.Unlock()
	return m
}

// Requests returns a copy of every request seen so far.
func (m *ScriptedModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns how many times Generate was invoked.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Generate implements Model.
func (m *ScriptedModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	step, err := m.take(req)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if err != nil {
			errCh <- err
			return
		}

		if step.Respond != nil {
			step = step.Respond(req)
		}

		if step.Err != nil {
			errCh <- step.Err
			return
		}

		if req.Stream && len(step.Calls) == 0 {
			chunks := step.Chunks
			if len(chunks) == 0 && step.Text != "" {
				chunks = []string{step.Text}
			}
			for _, c := range chunks {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Message: partialText(c)}:
				}
			}
		}

		parts := make([]core.Part, 0, len(step.Calls)+1)
		if step.Text != "" {
			parts = append(parts, core.TextPart{Text: step.Text})
		}
		for _, fc := range step.Calls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
		}

		finish := "stop"
		if len(step.Calls) > 0 {
			finish = "tool_calls"
		}

		respCh <- Response{
			Message:      core.NewMessage(core.RoleAssistant, "", parts...),
			FinishReason: finish,
		}
	}()

	return respCh, errCh
}

func (m *ScriptedModel) take(req Request) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := req
	cp.Messages = make([]core.Message, len(req.Messages))
	for i, msg := range req.Messages {
		cp.Messages[i] = msg.Clone()
	}
	m.requests = append(m.requests, cp)

	if m.next >= len(m.steps) {
		if m.repeat && len(m.steps) > 0 {
			return m.steps[len(m.steps)-1], nil
		}
		return Step{}, fmt.Errorf("%w (call %d)", ErrScriptExhausted, len(m.requests))
	}

	step := m.steps[m.next]
	m.next++

	return step, nil
}

// Info implements Model.
func (m *ScriptedModel) Info() Info {
	return Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}

// Collect drains a Generate call and returns the final response. Partial
// responses are passed to onPartial when non-nil.
func Collect(respCh <-chan Response, errCh <-chan error, onPartial func(Response)) (Response, error) {
	var (
		final    Response
		hasFinal bool
	)

	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				if onPartial != nil {
					onPartial(r)
				}
				continue
			}
			final, hasFinal = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if !hasFinal {
		return Response{}, errors.New("model returned no final response")
	}

	return final, nil
}
