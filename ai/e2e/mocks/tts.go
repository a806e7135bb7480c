package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/hrygo/manas/ai/core/tts"
)

// MockTTS is a tts.Provider that "synthesizes" text by echoing it as audio bytes.
type MockTTS struct {
	mu  sync.Mutex
	err error

	texts    []string
	streamed []string
}

// NewMockTTS creates a new MockTTS instance.
func NewMockTTS() *MockTTS {
	return &MockTTS{}
}

// WithError fails every synthesis with err.
func (m *MockTTS) WithError(err error) *MockTTS {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Synthesize implements tts.Provider.
func (m *MockTTS) Synthesize(ctx context.Context, text string) (<-chan *tts.AudioChunk, <-chan error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	err := m.err
	m.mu.Unlock()

	audio := make(chan *tts.AudioChunk, 2)
	errc := make(chan error, 1)
	if err != nil {
		errc <- err
	} else {
		audio <- &tts.AudioChunk{Data: []byte(text)}
		audio <- &tts.AudioChunk{Index: 1, Final: true}
	}
	close(audio)
	close(errc)
	return audio, errc
}

// SynthesizeStream implements tts.Provider. Each delta becomes one audio frame.
func (m *MockTTS) SynthesizeStream(ctx context.Context, deltas <-chan string) (<-chan *tts.AudioChunk, <-chan error) {
	m.mu.Lock()
	err := m.err
	m.mu.Unlock()

	audio := make(chan *tts.AudioChunk)
	errc := make(chan error, 1)

	go func() {
		defer close(audio)
		defer close(errc)

		var sb strings.Builder
		defer func() {
			m.mu.Lock()
			m.streamed = append(m.streamed, sb.String())
			m.mu.Unlock()
		}()

		index := 0
		for {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			case delta, ok := <-deltas:
				if !ok {
					if err != nil {
						errc <- err
					}
					return
				}
				sb.WriteString(delta)
				if err != nil {
					// Keep draining so the producer never blocks.
					continue
				}
				select {
				case audio <- &tts.AudioChunk{Data: []byte(delta), Index: index}:
					index++
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
		}
	}()

	return audio, errc
}

// Texts returns the texts passed to Synthesize.
func (m *MockTTS) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

// Streamed returns the concatenated input of each finished SynthesizeStream call.
func (m *MockTTS) Streamed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.streamed...)
}

// Ensure MockTTS implements tts.Provider interface.
var _ tts.Provider = (*MockTTS)(nil)
