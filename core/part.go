package core

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string // Plain UTF-8 text
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Stable id correlating call and response
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON object)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call. Response always
// holds the text handed back to the model, including rendered failures.
// ErrorKind keeps the structured failure category so callers never have to
// match on the text.
type FunctionResponse struct {
	ID        string `json:"id,omitempty"`         // Matches originating FunctionCall ID
	Name      string `json:"name"`                 // Function name
	Response  string `json:"response"`             // Text result as seen by the model
	ErrorKind string `json:"error_kind,omitempty"` // Populated on failure
}

// Failed reports whether the response carries a tool failure.
func (fr FunctionResponse) Failed() bool { return fr.ErrorKind != "" }

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}
