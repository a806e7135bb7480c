// Package mocks provides hand-written fakes of the assistant's collaborators for tests.
package mocks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/manas/ai/core/llm"
)

type rule struct {
	contains string
	response string
	err      error
}

// Call is one recorded invocation of MockLLM.
type Call struct {
	Messages []llm.Message
	Options  llm.CallOptions
	Stream   bool
}

// Prompt returns the concatenated message contents of the call.
func (c Call) Prompt() string {
	parts := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// MockLLM is a configurable llm.Service.
// Responses are chosen by the first rule whose substring appears in the prompt.
type MockLLM struct {
	mu              sync.Mutex
	rules           []rule
	defaultResponse string
	defaultErr      error
	callStats       *llm.LLMCallStats

	streamChunks []string
	streamErr    error
	streamDelay  time.Duration

	calls []Call
}

// NewMockLLM creates a new MockLLM instance.
func NewMockLLM() *MockLLM {
	return &MockLLM{
		callStats: &llm.LLMCallStats{
			PromptTokens:     100,
			CompletionTokens: 50,
			TotalTokens:      150,
		},
		defaultResponse: "Mock response",
	}
}

// WithResponse answers output to any prompt containing substr.
func (m *MockLLM) WithResponse(substr, output string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{contains: substr, response: output})
	return m
}

// WithError fails any prompt containing substr with err.
func (m *MockLLM) WithError(substr string, err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{contains: substr, err: err})
	return m
}

// WithDefaultResponse sets the response when no rule matches.
func (m *MockLLM) WithDefaultResponse(output string) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResponse = output
	m.defaultErr = nil
	return m
}

// WithDefaultError fails every call that no rule matches.
func (m *MockLLM) WithDefaultError(err error) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// WithStream sets the deltas ChatStream emits, an optional terminal error and a per-delta delay.
func (m *MockLLM) WithStream(chunks []string, err error, delay time.Duration) *MockLLM {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = chunks
	m.streamErr = err
	m.streamDelay = delay
	return m
}

func (m *MockLLM) record(msgs []llm.Message, opts []llm.CallOption, stream bool) Call {
	call := Call{
		Messages: append([]llm.Message(nil), msgs...),
		Options:  llm.ApplyOptions(opts...),
		Stream:   stream,
	}
	m.calls = append(m.calls, call)
	return call
}

// Chat implements the llm.Service interface.
func (m *MockLLM) Chat(ctx context.Context, msgs []llm.Message, opts ...llm.CallOption) (string, *llm.LLMCallStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.record(msgs, opts, false)
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	prompt := call.Prompt()
	for _, r := range m.rules {
		if strings.Contains(prompt, r.contains) {
			if r.err != nil {
				return "", nil, r.err
			}
			return r.response, m.callStats, nil
		}
	}
	if m.defaultErr != nil {
		return "", nil, m.defaultErr
	}
	return m.defaultResponse, m.callStats, nil
}

// ChatStream implements the llm.Service interface.
// Without configured chunks it streams the default response as a single delta.
func (m *MockLLM) ChatStream(ctx context.Context, msgs []llm.Message, opts ...llm.CallOption) (<-chan string, <-chan *llm.LLMCallStats, <-chan error) {
	m.mu.Lock()
	m.record(msgs, opts, true)
	chunks := m.streamChunks
	if chunks == nil {
		chunks = []string{m.defaultResponse}
	}
	streamErr, delay := m.streamErr, m.streamDelay
	m.mu.Unlock()

	contentChan := make(chan string)
	statsChan := make(chan *llm.LLMCallStats, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(statsChan)
		defer close(errChan)

		for _, chunk := range chunks {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					errChan <- ctx.Err()
					return
				}
			}
			select {
			case contentChan <- chunk:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
		if streamErr != nil {
			errChan <- streamErr
			return
		}
		statsChan <- &llm.LLMCallStats{PromptTokens: 100, CompletionTokens: len(chunks), TotalTokens: 100 + len(chunks)}
	}()

	return contentChan, statsChan, errChan
}

// Warmup implements the llm.Service interface (no-op).
func (m *MockLLM) Warmup(ctx context.Context) {}

// Calls returns the recorded invocations in order.
func (m *MockLLM) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallCount returns how many calls were made.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Ensure MockLLM implements llm.Service interface.
var _ llm.Service = (*MockLLM)(nil)
