package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakable(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "It is sunny today.", "It is sunny today."},
		{"emphasis", "It is **very** sunny and _warm_.", "It is very sunny and warm."},
		{"heading and paragraph", "# Your tasks\n\nYou have two tasks.", "Your tasks. You have two tasks."},
		{"list", "- buy milk\n- call mom", "buy milk. call mom."},
		{"link", "Read [the article](https://example.com/a) now.", "Read the article now."},
		{"code block skipped", "Run this:\n\n```\nrm -rf /\n```\n\nDone.", "Run this: Done."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Speakable(tt.in))
		})
	}
}

func TestSentenceBuffer(t *testing.T) {
	var b SentenceBuffer

	assert.Equal(t, "", b.Push("Hello"))
	assert.Equal(t, "", b.Push(" world."))
	assert.Equal(t, "Hello world.", b.Push(" How"))
	assert.Equal(t, "How are you? Fine.", b.Push(" are you? Fine. Th"))
	assert.Equal(t, "Th", b.Flush())
	assert.Equal(t, "", b.Flush())
}
