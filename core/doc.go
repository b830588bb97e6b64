// Package core provides the foundational domain types and execution contexts
// shared by the marketingmesh packages. It defines:
//
//   - Messages (role-based, ordered conversation records with typed parts)
//   - Sessions (append-only message logs keyed by thread id)
//   - Progress notifications (out-of-band status of in-flight tools)
//   - RunContext / ToolContext (scoped execution state for one agent run and
//     one tool call)
//
// The package keeps implementation concerns (persistence, model adapters,
// transports) out of scope, exposing small interfaces so backends can be
// swapped without touching the agent loop.
package core
