// Package session houses concrete implementations of core.SessionStore, the
// per-session conversation memory. The interface itself (and the Session
// struct) live in the core package; keeping only implementations here
// prevents higher level packages from depending on concrete storage.
//
// Two backends are provided:
//   - InMemoryStore: process-lifetime map keyed by thread id, lost on restart
//   - SQLiteStore: durable log; Resume replays every prior turn in append order
//
// Neither backend stores credentials. Bearer tokens are short-lived and are
// looked up per session at resume time (see package credential).
package session
