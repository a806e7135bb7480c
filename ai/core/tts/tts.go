// Package tts converts assistant replies to audio.
package tts

import (
	"context"
)

// AudioChunk is one frame of synthesized audio.
type AudioChunk struct {
	Data  []byte
	Index int
	Final bool
}

// Provider synthesizes speech.
//
// Both methods return an audio channel and an error channel. The audio channel is
// closed when synthesis ends for any reason; at most one error is delivered.
// Quota exhaustion is reported as an errs ProviderError with the quota flag set.
type Provider interface {
	// Synthesize converts a complete text to audio.
	Synthesize(ctx context.Context, text string) (<-chan *AudioChunk, <-chan error)

	// SynthesizeStream converts text arriving incrementally on deltas to audio.
	// Synthesis ends when deltas is closed.
	SynthesizeStream(ctx context.Context, deltas <-chan string) (<-chan *AudioChunk, <-chan error)
}

// Collect drains the channels of a synthesis call into one buffer.
func Collect(audio <-chan *AudioChunk, errc <-chan error) ([]byte, error) {
	var buf []byte
	for chunk := range audio {
		buf = append(buf, chunk.Data...)
	}
	if err := <-errc; err != nil {
		return buf, err
	}
	return buf, nil
}
