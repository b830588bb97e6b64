// Package model defines the provider-agnostic abstractions for interacting
// with language models.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Facilitate deterministic doubles for tests (ScriptedModel, MockModel)
//
// Providers (OpenAI, Anthropic) implement Model in sub-packages so higher
// layers stay decoupled from vendor SDKs.
package model
