// Package agent contains the tool-calling conversation loop.
//
// A Loop resolves the system instruction, sends the conversation window and
// the tool definitions to the model, dispatches requested tool calls through
// a tool.Registry and feeds the results back until the model answers without
// calling a tool or the step limit is reached.
//
// Every produced message is emitted on the returned channel in order; text
// deltas are emitted as partial messages when streaming is enabled. The loop
// itself keeps no state between runs, so a single Loop can serve any number
// of sessions concurrently.
package agent
