package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/errs"
)

func newTestService(t *testing.T, handler http.HandlerFunc) Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(&Config{
		Provider: "openai",
		Model:    "test-model",
		APIKey:   "test-key",
		BaseURL:  server.URL,
		Timeout:  5,
	})
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresModel(t *testing.T) {
	_, err := NewService(&Config{Provider: "openai", APIKey: "k"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConfiguration))

	_, err = NewService(nil)
	assert.Error(t, err)
}

func TestNewService_Defaults(t *testing.T) {
	svc, err := NewService(&Config{Provider: "deepseek", Model: "deepseek-chat", APIKey: "k"})
	require.NoError(t, err)

	s, ok := svc.(*service)
	require.True(t, ok)
	assert.Equal(t, 1024, s.maxTokens)
	assert.InDelta(t, 0.7, s.temperature, 1e-6)
	assert.Equal(t, 120, s.timeout)
}

func TestService_Chat(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"It is sunny."},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}`)
	})

	text, stats, err := svc.Chat(context.Background(),
		[]Message{SystemPrompt("be brief"), UserMessage("weather?")},
		WithTemperature(0.2), WithMaxTokens(50))
	require.NoError(t, err)

	assert.Equal(t, "It is sunny.", text)
	assert.Equal(t, 16, stats.TotalTokens)
	assert.Equal(t, "test-model", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	assert.Equal(t, 50, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestService_Chat_QuotaExceeded(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"insufficient_quota","code":"insufficient_quota"}}`)
	})

	_, _, err := svc.Chat(context.Background(), []Message{UserMessage("hi")})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProvider))
	assert.True(t, errs.IsQuotaExceeded(err))
}

func TestService_Chat_ServerError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := svc.Chat(context.Background(), []Message{UserMessage("hi")})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindProvider))
	assert.False(t, errs.IsQuotaExceeded(err))
}

func TestService_ChatStream(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hello", " there", "!"} {
			fmt.Fprintf(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: {\"id\":\"1\",\"object\":\"chat.completion.chunk\",\"choices\":[],\"usage\":{\"prompt_tokens\":3,\"completion_tokens\":3,\"total_tokens\":6}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	contentCh, statsCh, errCh := svc.ChatStream(context.Background(), []Message{UserMessage("hi")})

	var sb strings.Builder
	for chunk := range contentCh {
		sb.WriteString(chunk)
	}
	assert.Equal(t, "Hello there!", sb.String())

	stats := <-statsCh
	require.NotNil(t, stats)
	assert.Equal(t, 6, stats.TotalTokens)
	assert.NoError(t, <-errCh)
}

func TestConvertMessages_Images(t *testing.T) {
	msgs := convertMessages([]Message{
		{Role: "user", Content: "what is this?", Images: []string{"data:image/png;base64,AAAA"}},
		{Role: "weird", Content: "x"},
	})

	require.Len(t, msgs, 2)
	assert.Empty(t, msgs[0].Content)
	require.Len(t, msgs[0].MultiContent, 2)
	assert.Equal(t, "data:image/png;base64,AAAA", msgs[0].MultiContent[1].ImageURL.URL)
	assert.Equal(t, "user", msgs[1].Role)
}
