package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/routing"
)

func collect(t *testing.T, ch <-chan *Chunk) []*Chunk {
	t.Helper()
	var chunks []*Chunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-timeout:
			t.Fatal("stream did not finish")
			return nil
		}
	}
}

func ofType(chunks []*Chunk, typ ChunkType) []*Chunk {
	var out []*Chunk
	for _, c := range chunks {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

func TestStreamTurn_Conversation(t *testing.T) {
	llm := mocks.NewMockLLM().
		WithResponse(classifyPrompt, classifiedAs(routing.IntentGeneralChat, 0.9)).
		WithStream([]string{"Hello", " there", "!"}, nil, 0)
	tts := mocks.NewMockTTS()
	f := newFixture(llm, tts)

	ch, err := f.svc.StreamTurn(context.Background(), &TurnRequest{UserID: testUser, Utterance: "hi"})
	require.NoError(t, err)
	chunks := collect(t, ch)

	require.NotEmpty(t, chunks)
	assert.Equal(t, ChunkMeta, chunks[0].Type)
	assert.Equal(t, routing.IntentGeneralChat, chunks[0].Intent)
	assert.Equal(t, 0.9, chunks[0].Confidence)

	var text strings.Builder
	for _, c := range ofType(chunks, ChunkText) {
		text.WriteString(c.Text)
	}
	assert.Equal(t, "Hello there!", text.String())

	var audio strings.Builder
	for _, c := range ofType(chunks, ChunkAudio) {
		audio.Write(c.Audio)
	}
	assert.Equal(t, "Hello there!", audio.String())
	assert.Equal(t, []string{"Hello there!"}, tts.Streamed())

	last := chunks[len(chunks)-1]
	assert.Equal(t, ChunkDone, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "Hello there!", last.Result.Message)

	history := f.sessions.History(testUser)
	require.Len(t, history, 2)
	assert.Equal(t, "Hello there!", history[1].Text)
}

func TestStreamTurn_CancelAfterFirstChunk(t *testing.T) {
	llm := mocks.NewMockLLM().
		WithResponse(classifyPrompt, classifiedAs(routing.IntentGeneralChat, 0.9)).
		WithStream([]string{"one", " two", " three", " four"}, nil, 50*time.Millisecond)
	f := newFixture(llm, mocks.NewMockTTS())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := f.svc.StreamTurn(ctx, &TurnRequest{UserID: testUser, Utterance: "count for me"})
	require.NoError(t, err)

	first := <-ch
	require.NotNil(t, first)
	assert.Equal(t, ChunkMeta, first.Type)
	cancel()

	rest := collect(t, ch)
	assert.Empty(t, ofType(rest, ChunkDone))
	assert.Empty(t, f.sessions.History(testUser))

	// The per-user lock is released.
	release, err := f.sessions.Acquire(context.Background(), testUser)
	require.NoError(t, err)
	release()
}

func TestStreamTurn_StructuredWithTTSQuota(t *testing.T) {
	llm := mocks.NewMockLLM().
		WithResponse(classifyPrompt, classifiedAs(routing.IntentGetWeather, 0.9)).
		WithResponse(beautifyPrompt, "Sorry, I can't check the weather yet.")
	tts := mocks.NewMockTTS().WithError(errs.ProviderQuota("tts.test", assert.AnError))
	f := newFixture(llm, tts)

	ch, err := f.svc.StreamTurn(context.Background(), &TurnRequest{UserID: testUser, Utterance: "weather in Lima"})
	require.NoError(t, err)
	chunks := collect(t, ch)

	texts := ofType(chunks, ChunkText)
	require.Len(t, texts, 1)
	assert.Equal(t, "Sorry, I can't check the weather yet.", texts[0].Text)
	assert.Equal(t, handlers.TypeWeather, texts[0].Result.Type)
	assert.Empty(t, ofType(chunks, ChunkAudio))
	assert.Equal(t, []string{"Sorry, I can't check the weather yet."}, tts.Texts())

	done := ofType(chunks, ChunkDone)
	require.Len(t, done, 1)
	assert.Equal(t, routing.IntentGetWeather, done[0].Intent)
	assert.Len(t, f.sessions.History(testUser), 2)
}

func TestStreamTurn_WithoutTTS(t *testing.T) {
	llm := mocks.NewMockLLM().
		WithResponse(classifyPrompt, classifiedAs(routing.IntentGeneralChat, 0.9)).
		WithStream([]string{"Just text."}, nil, 0)
	f := newFixture(llm, nil)

	ch, err := f.svc.StreamTurn(context.Background(), &TurnRequest{UserID: testUser, Utterance: "hello"})
	require.NoError(t, err)
	chunks := collect(t, ch)

	assert.Empty(t, ofType(chunks, ChunkAudio))
	require.Len(t, ofType(chunks, ChunkText), 1)
	assert.Equal(t, ChunkDone, chunks[len(chunks)-1].Type)
}

func TestStreamTurn_GenerationFailure(t *testing.T) {
	llm := mocks.NewMockLLM().
		WithResponse(classifyPrompt, classifiedAs(routing.IntentGeneralChat, 0.9)).
		WithStream([]string{}, errProviderDown, 0)
	f := newFixture(llm, nil)

	ch, err := f.svc.StreamTurn(context.Background(), &TurnRequest{UserID: testUser, Utterance: "tell me a story"})
	require.NoError(t, err)
	chunks := collect(t, ch)

	texts := ofType(chunks, ChunkText)
	require.Len(t, texts, 1)
	assert.Equal(t, handlers.ChatFallback, texts[0].Text)

	done := ofType(chunks, ChunkDone)
	require.Len(t, done, 1)
	assert.Error(t, done[0].Result.Err)
	assert.Empty(t, f.sessions.History(testUser), "failed generations are not remembered")
}
