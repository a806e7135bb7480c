package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/session"
)

func TestNeedsResolution(t *testing.T) {
	tests := []struct {
		utterance string
		want      bool
	}{
		{"how about there?", true},
		{"add that to my list", true},
		{"tell me more", true},
		{"anything else?", true},
		{"what's the weather in Dallas", false},
		{"", false},
		{"could you please tell me everything you know about that topic from earlier today", false},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, NeedsResolution(tt.utterance))
		})
	}
}

func TestResolve(t *testing.T) {
	history := []session.Turn{
		session.UserTurn("what's the weather in Dallas?"),
		session.AssistantTurn("It's 75°F and sunny in Dallas."),
	}

	t.Run("rewrites with history", func(t *testing.T) {
		mock := mocks.NewMockLLM().WithDefaultResponse(`"what's the weather in Austin?"`)
		r := New(mock)

		got := r.Resolve(context.Background(), "how about Austin?", history)
		assert.Equal(t, "what's the weather in Austin?", got)

		calls := mock.Calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].Prompt(), "Conversation History:\nUser: what's the weather in Dallas?")
		require.NotNil(t, calls[0].Options.Temperature)
		assert.Zero(t, *calls[0].Options.Temperature)
	})

	t.Run("empty history skips the call", func(t *testing.T) {
		mock := mocks.NewMockLLM()
		r := New(mock)

		assert.Equal(t, "how about there?", r.Resolve(context.Background(), "how about there?", nil))
		assert.Zero(t, mock.CallCount())
	})

	t.Run("provider failure returns original", func(t *testing.T) {
		r := New(mocks.NewMockLLM().WithDefaultError(errors.New("timeout")))
		assert.Equal(t, "how about there?", r.Resolve(context.Background(), "how about there?", history))
	})

	t.Run("empty output returns original", func(t *testing.T) {
		r := New(mocks.NewMockLLM().WithDefaultResponse("  "))
		assert.Equal(t, "how about there?", r.Resolve(context.Background(), "how about there?", history))
	})

	t.Run("oversized output returns original", func(t *testing.T) {
		r := New(mocks.NewMockLLM().WithDefaultResponse(strings.Repeat("word ", 200)))
		assert.Equal(t, "and there?", r.Resolve(context.Background(), "and there?", history))
	})

	t.Run("nil resolver is a no-op", func(t *testing.T) {
		var r *Resolver
		assert.Equal(t, "and there?", r.Resolve(context.Background(), "and there?", history))
	})
}

func TestResolveIfNeeded(t *testing.T) {
	history := []session.Turn{session.UserTurn("find sushi in Seattle")}
	mock := mocks.NewMockLLM().WithDefaultResponse("find more sushi places in Seattle")
	r := New(mock)

	assert.Equal(t, "show me pizza in Portland", r.ResolveIfNeeded(context.Background(), "show me pizza in Portland", history))
	assert.Zero(t, mock.CallCount())

	assert.Equal(t, "find more sushi places in Seattle", r.ResolveIfNeeded(context.Background(), "show me more", history))
	assert.Equal(t, 1, mock.CallCount())
}
