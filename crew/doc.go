// Package crew runs an expensive, multi-step delegated task (company
// research) and presents it to the outer assistant as a single tool call.
//
// A Crew executes an ordered task graph and reports every completed step
// through a callback. DelegatedTool wraps a Crew as a tool.Tool and turns
// those callbacks into fire-and-forget progress notifications, so the chat
// channel stays informed while the tool call is outstanding.
//
// SequentialCrew is the bundled implementation: each task is handled by a
// crew agent (role, goal, backstory) that is itself an agent.Loop over the
// crew's model and the tools named in its definition. Definitions are
// loaded from YAML; a brand research crew is embedded as the default.
package crew
