package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/session"
)

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Classification
	}{
		{
			name:  "plain json",
			reply: `{"intent": "GET_WEATHER", "confidence": 0.92}`,
			want:  Classification{Intent: IntentGetWeather, Confidence: 0.92},
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"intent\": \"ADD_TASK\", \"confidence\": 0.8}\n```",
			want:  Classification{Intent: IntentAddTask, Confidence: 0.8},
		},
		{
			name:  "confidence clamped high",
			reply: `{"intent": "LEARN", "confidence": 1.7}`,
			want:  Classification{Intent: IntentLearn, Confidence: 1},
		},
		{
			name:  "confidence clamped low",
			reply: `{"intent": "LEARN", "confidence": -0.2}`,
			want:  Classification{Intent: IntentLearn, Confidence: 0},
		},
		{
			name:  "unknown intent",
			reply: `{"intent": "ORDER_PIZZA", "confidence": 0.9}`,
			want:  Fallback,
		},
		{
			name:  "missing confidence",
			reply: `{"intent": "GET_NEWS"}`,
			want:  Fallback,
		},
		{
			name:  "prose",
			reply: "I think the user wants the weather.",
			want:  Fallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := mocks.NewMockLLM().WithDefaultResponse(tt.reply)
			c := NewClassifier(llm, nil, nil)

			got := c.Classify(context.Background(), "some utterance", nil)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifier_ProviderError(t *testing.T) {
	llm := mocks.NewMockLLM().WithDefaultError(errs.Provider("test.chat", errors.New("timeout")))
	c := NewClassifier(llm, nil, nil)

	assert.Equal(t, Fallback, c.Classify(context.Background(), "hello", nil))
}

func TestClassifier_Prompt(t *testing.T) {
	llm := mocks.NewMockLLM().WithDefaultResponse(`{"intent": "GET_WEATHER", "confidence": 0.9}`)
	c := NewClassifier(llm, nil, nil)
	history := []session.Turn{session.UserTurn("I'm flying to Paris"), session.AssistantTurn("Have a great trip!")}

	c.Classify(context.Background(), "how's the weather there", history)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Prompt()
	for _, i := range AllIntents {
		assert.Contains(t, prompt, "- "+string(i)+":")
	}
	assert.Contains(t, prompt, "I'm flying to Paris")
	assert.Contains(t, prompt, `Message: "how's the weather there"`)
	require.NotNil(t, calls[0].Options.Temperature)
	assert.Zero(t, *calls[0].Options.Temperature)
}

func TestClassifier_CachesOnlyWithoutHistory(t *testing.T) {
	llm := mocks.NewMockLLM().WithDefaultResponse(`{"intent": "GET_NEWS", "confidence": 0.9}`)
	c := NewClassifier(llm, NewClassificationCache(CacheConfig{}), nil)
	ctx := context.Background()

	c.Classify(ctx, "what's in the news", nil)
	c.Classify(ctx, "What's in the news", nil)
	assert.Equal(t, 1, llm.CallCount())

	history := []session.Turn{session.UserTurn("tell me about Mars")}
	c.Classify(ctx, "what's in the news", history)
	assert.Equal(t, 2, llm.CallCount())
}

func TestClassifier_FallbackIsNotCached(t *testing.T) {
	llm := mocks.NewMockLLM().WithDefaultResponse("not json")
	cache := NewClassificationCache(CacheConfig{})
	c := NewClassifier(llm, cache, nil)

	c.Classify(context.Background(), "hmm", nil)

	assert.Equal(t, 0, cache.Len())
}
