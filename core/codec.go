package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Part type tags used by the JSON encoding of Message.
const (
	partTypeText             = "text"
	partTypeFunctionCall     = "function_call"
	partTypeFunctionResponse = "function_response"
)

// partEnvelope is the tagged wire shape of a Part.
type partEnvelope struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

type messageWire struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Author    string         `json:"author,omitempty"`
	Parts     []partEnvelope `json:"parts"`
	Partial   bool           `json:"partial,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// MarshalJSON encodes the message with tagged parts so the closed Part set
// survives a round trip through durable storage.
func (m Message) MarshalJSON() ([]byte, error) {
	w := messageWire{
		ID:        m.ID,
		Role:      m.Role,
		Author:    m.Author,
		Parts:     make([]partEnvelope, 0, len(m.Parts)),
		Partial:   m.Partial,
		Timestamp: m.Timestamp,
	}

	for _, p := range m.Parts {
		switch part := p.(type) {
		case TextPart:
			w.Parts = append(w.Parts, partEnvelope{Type: partTypeText, Text: part.Text})
		case FunctionCallPart:
			fc := part.FunctionCall
			w.Parts = append(w.Parts, partEnvelope{Type: partTypeFunctionCall, FunctionCall: &fc})
		case FunctionResponsePart:
			fr := part.FunctionResponse
			w.Parts = append(w.Parts, partEnvelope{Type: partTypeFunctionResponse, FunctionResponse: &fr})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes a message produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	parts := make([]Part, 0, len(w.Parts))
	for i, env := range w.Parts {
		switch env.Type {
		case partTypeText:
			parts = append(parts, TextPart{Text: env.Text})
		case partTypeFunctionCall:
			if env.FunctionCall == nil {
				return fmt.Errorf("part %d: missing function_call payload", i)
			}
			parts = append(parts, FunctionCallPart{FunctionCall: *env.FunctionCall})
		case partTypeFunctionResponse:
			if env.FunctionResponse == nil {
				return fmt.Errorf("part %d: missing function_response payload", i)
			}
			parts = append(parts, FunctionResponsePart{FunctionResponse: *env.FunctionResponse})
		default:
			return fmt.Errorf("part %d: unknown type %q", i, env.Type)
		}
	}

	*m = Message{
		ID:        w.ID,
		Role:      w.Role,
		Author:    w.Author,
		Parts:     parts,
		Partial:   w.Partial,
		Timestamp: w.Timestamp,
	}

	return nil
}
