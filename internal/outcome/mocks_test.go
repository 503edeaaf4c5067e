package outcome

import (
	"context"
	"errors"
)

// MockLLMClient is a scripted LLMClient for evaluator tests.
type MockLLMClient struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLMClient) Complete(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

var errProviderDown = errors.New("provider unavailable")
