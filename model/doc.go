// Package model provides concrete core.Generator implementations for
// language model providers used by analysis and reporting components.
//
// Core goals:
//   - Keep the generation contract minimal (system + prompt in, text out)
//   - Hide vendor SDK shapes from higher layers entirely
//   - Facilitate deterministic mocking for tests (MockGenerator)
//
// Providers (OpenAI, Anthropic) live in subpackages so importing the mock
// never pulls a vendor SDK into the build.
package model
