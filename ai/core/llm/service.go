package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/manas/ai/errs"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
	// Images are http(s) or data: URLs attached to a user message.
	Images []string
}

// LLMCallStats represents statistics for a single LLM call.
type LLMCallStats struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// ThinkingDurationMs is the time from request start to first chunk.
	// For non-streaming requests, this is the total request duration.
	ThinkingDurationMs int64 `json:"thinking_duration_ms"`

	// GenerationDurationMs is the time from first chunk to last chunk (streaming only).
	GenerationDurationMs int64 `json:"generation_duration_ms,omitempty"`

	TotalDurationMs int64 `json:"total_duration_ms"`
}

// Service is the text generation collaborator.
type Service interface {
	// Chat performs synchronous chat. Returns content, statistics, and error.
	Chat(ctx context.Context, messages []Message, opts ...CallOption) (string, *LLMCallStats, error)

	// ChatStream performs streaming chat. Returns content channel, stats channel, and error channel.
	// The content channel is closed when the stream ends for any reason.
	ChatStream(ctx context.Context, messages []Message, opts ...CallOption) (<-chan string, <-chan *LLMCallStats, <-chan error)

	// Warmup sends a lightweight ping request to establish the connection.
	Warmup(ctx context.Context)
}

// CallOption overrides per-call generation parameters.
type CallOption func(*CallOptions)

// CallOptions is the resolved set of per-call overrides.
// A nil Temperature or zero MaxTokens keeps the service default.
type CallOptions struct {
	Temperature *float32
	MaxTokens   int
}

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(t float32) CallOption {
	return func(o *CallOptions) { o.Temperature = &t }
}

// WithMaxTokens overrides the completion token budget for one call.
func WithMaxTokens(n int) CallOption {
	return func(o *CallOptions) { o.MaxTokens = n }
}

// ApplyOptions resolves opts into a CallOptions.
func ApplyOptions(opts ...CallOption) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Config represents LLM service configuration.
type Config struct {
	Provider    string // openai, deepseek, siliconflow, openrouter, ollama
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 1024
	Temperature float32 // default: 0.7
	Timeout     int     // request timeout in seconds (default: 120)
}

var providerBaseURLs = map[string]string{
	"deepseek":    "https://api.deepseek.com",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"openrouter":  "https://openrouter.ai/api/v1",
	"ollama":      "http://localhost:11434/v1",
}

type service struct {
	client      *openai.Client
	model       string
	provider    string
	maxTokens   int
	temperature float32
	timeout     int
}

// NewService creates a new LLM Service for any OpenAI-compatible provider.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, errs.Configuration("llm", "LLM config")
	}
	if cfg.Model == "" {
		return nil, errs.Configuration("llm", "LLM model")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.HTTPClient = newHTTPClient()

	switch {
	case cfg.BaseURL != "":
		clientConfig.BaseURL = cfg.BaseURL
	case providerBaseURLs[cfg.Provider] != "":
		clientConfig.BaseURL = providerBaseURLs[cfg.Provider]
	case cfg.Provider != "openai" && cfg.Provider != "":
		slog.Info("using generic OpenAI-compatible provider with default base URL", "provider", cfg.Provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	return &service{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		provider:    cfg.Provider,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}, nil
}

func (s *service) request(messages []Message, opts []CallOption) openai.ChatCompletionRequest {
	o := ApplyOptions(opts...)
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages:    convertMessages(messages),
	}
	if o.Temperature != nil {
		req.Temperature = *o.Temperature
		// go-openai omits a zero temperature from the request body.
		if req.Temperature <= 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}
	return req
}

func (s *service) Chat(ctx context.Context, messages []Message, opts ...CallOption) (string, *LLMCallStats, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeout)*time.Second)
	defer cancel()

	req := s.request(messages, opts)
	slog.Debug("LLM: chat request",
		"model", s.model,
		"messages_count", len(messages),
		"max_tokens", req.MaxTokens,
		"temperature", req.Temperature,
	)

	startTime := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("LLM: chat request failed", "model", s.model, "error", err)
		return "", nil, wrapProviderError("llm.chat", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("LLM: empty response", "model", s.model)
		return "", nil, errs.Provider("llm.chat", errors.New("empty response from LLM"))
	}

	totalDuration := time.Since(startTime)
	stats := &LLMCallStats{
		PromptTokens:       resp.Usage.PromptTokens,
		CompletionTokens:   resp.Usage.CompletionTokens,
		TotalTokens:        resp.Usage.TotalTokens,
		ThinkingDurationMs: totalDuration.Milliseconds(),
		TotalDurationMs:    totalDuration.Milliseconds(),
	}

	slog.Debug("LLM: chat response received",
		"content_length", len(resp.Choices[0].Message.Content),
		"total_tokens", stats.TotalTokens,
		"duration_ms", totalDuration.Milliseconds(),
	)
	return resp.Choices[0].Message.Content, stats, nil
}

func (s *service) ChatStream(ctx context.Context, messages []Message, opts ...CallOption) (<-chan string, <-chan *LLMCallStats, <-chan error) {
	contentChan := make(chan string, 10)
	statsChan := make(chan *LLMCallStats, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(statsChan)
		defer close(errChan)

		ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeout)*time.Second)
		defer cancel()

		req := s.request(messages, opts)
		req.Stream = true
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		startTime := time.Now()
		var firstChunkTime time.Time

		slog.Debug("LLM: stream starting", "model", s.model, "messages", len(messages))
		stream, err := s.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			slog.Error("LLM: stream create failed", "error", err)
			errChan <- wrapProviderError("llm.stream", err)
			return
		}
		defer func() { _ = stream.Close() }()

		chunkCount := 0
		stats := &LLMCallStats{}
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				totalDuration := time.Since(startTime)
				if !firstChunkTime.IsZero() {
					stats.ThinkingDurationMs = firstChunkTime.Sub(startTime).Milliseconds()
					stats.GenerationDurationMs = time.Since(firstChunkTime).Milliseconds()
				}
				stats.TotalDurationMs = totalDuration.Milliseconds()
				slog.Debug("LLM: stream completed", "chunks", chunkCount, "duration_ms", stats.TotalDurationMs)
				statsChan <- stats
				return
			}
			if err != nil {
				slog.Error("LLM: stream receive error", "error", err, "chunks_so_far", chunkCount)
				errChan <- wrapProviderError("llm.stream", err)
				return
			}

			if response.Usage != nil && response.Usage.TotalTokens > 0 {
				stats.PromptTokens = response.Usage.PromptTokens
				stats.CompletionTokens = response.Usage.CompletionTokens
				stats.TotalTokens = response.Usage.TotalTokens
			}
			if len(response.Choices) == 0 {
				continue
			}

			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if firstChunkTime.IsZero() {
				firstChunkTime = time.Now()
			}
			chunkCount++
			select {
			case contentChan <- delta:
			case <-ctx.Done():
				slog.Debug("LLM: stream abandoned by consumer", "chunks", chunkCount)
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return contentChan, statsChan, errChan
}

func (s *service) Warmup(ctx context.Context) {
	warmupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startTime := time.Now()
	_, err := s.client.CreateChatCompletion(warmupCtx, openai.ChatCompletionRequest{
		Model:     s.model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "Hi"},
		},
	})
	duration := time.Since(startTime)

	if err != nil {
		slog.Warn("LLM: warmup ping failed (first request may be slower)",
			"provider", s.provider,
			"model", s.model,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return
	}
	slog.Info("LLM: connection warmed up",
		"provider", s.provider,
		"model", s.model,
		"duration_ms", duration.Milliseconds(),
	)
}

// wrapProviderError maps go-openai failures into the provider error kind,
// flagging 429 responses as quota rejections.
func wrapProviderError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errs.ProviderQuota(op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errs.ProviderQuota(op, err)
	}
	return errs.Provider(op, fmt.Errorf("%s failed: %w", op, err))
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	llmMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case "system":
			role = openai.ChatMessageRoleSystem
		case "assistant":
			role = openai.ChatMessageRoleAssistant
		}

		if len(m.Images) == 0 {
			llmMessages[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
			continue
		}

		parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: m.Content}}
		for _, url := range m.Images {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailAuto},
			})
		}
		llmMessages[i] = openai.ChatCompletionMessage{Role: role, MultiContent: parts}
	}
	return llmMessages
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
