package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/contractguard/contractguard/core"
)

// MockGenerator is a lightweight in-memory Generator useful for tests & examples.
// Canned responses are matched against the prompt; unmatched prompts produce a
// deterministic echo so assertions stay stable without registration.
type MockGenerator struct {
	mu        sync.Mutex
	info      core.GeneratorInfo
	responses map[string]string
	calls     []core.GenerateRequest
	err       error
}

// NewMockGenerator constructs a MockGenerator with the given identity.
func NewMockGenerator(name, provider string) *MockGenerator {
	return &MockGenerator{
		info:      core.GeneratorInfo{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for prompts
// containing the given substring.
func (m *MockGenerator) AddResponse(promptContains, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[promptContains] = response
}

// FailWith makes every subsequent Generate call return err.
func (m *MockGenerator) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a snapshot of every request seen so far, in order.
func (m *MockGenerator) Calls() []core.GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.GenerateRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate implements core.Generator.
func (m *MockGenerator) Generate(ctx context.Context, req core.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	if m.err != nil {
		return "", m.err
	}
	for needle, response := range m.responses {
		if strings.Contains(req.Prompt, needle) {
			return response, nil
		}
	}
	return fmt.Sprintf("Mock response to: %s", req.Prompt), nil
}

// Info implements core.Generator.
func (m *MockGenerator) Info() core.GeneratorInfo { return m.info }
