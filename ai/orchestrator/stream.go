package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/manas/ai/core/tts"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/routing"
)

// ChunkType identifies a streamed chunk.
type ChunkType string

const (
	// ChunkMeta is always first and carries the classification.
	ChunkMeta ChunkType = "meta"
	// ChunkText carries reply text: a delta in conversational turns, the whole message otherwise.
	ChunkText ChunkType = "text"
	// ChunkAudio carries one synthesized audio frame.
	ChunkAudio ChunkType = "audio"
	// ChunkDone is last and carries the final result.
	ChunkDone ChunkType = "done"
)

// Chunk is one element of a streamed turn.
type Chunk struct {
	Type       ChunkType        `json:"type"`
	TurnID     string           `json:"turn_id"`
	Intent     routing.Intent   `json:"intent,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Text       string           `json:"text,omitempty"`
	Audio      []byte           `json:"audio,omitempty"`
	Result     *handlers.Result `json:"result,omitempty"`
}

// StreamTurn runs a turn and streams its reply as text and audio chunks.
// The channel is closed when the turn ends. Cancelling ctx abandons the turn
// and nothing is recorded in history.
func (s *Service) StreamTurn(ctx context.Context, req *TurnRequest) (<-chan *Chunk, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	release, err := s.sessions.Acquire(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	out := make(chan *Chunk, 16)
	go func() {
		defer close(out)
		defer release()
		defer s.metrics.StreamStarted()()

		start := time.Now()
		p := s.prepare(ctx, req)

		meta := &Chunk{
			Type:       ChunkMeta,
			TurnID:     p.turnID,
			Intent:     p.classification.Intent,
			Confidence: p.classification.Confidence,
		}
		if !emit(ctx, out, meta) {
			return
		}

		var (
			res *handlers.Result
			ok  bool
		)
		executed := p.executed
		if executed.IsConversational() && s.llm != nil && s.handlers != nil {
			res, ok = s.streamConversation(ctx, p, out)
		} else {
			res, executed, ok = s.streamStructured(ctx, p, out)
		}
		if !ok || ctx.Err() != nil {
			slog.Debug("stream abandoned, turn not recorded", "turn_id", p.turnID)
			return
		}

		// An interrupted generation is answered but not remembered.
		if !executed.IsConversational() || res.Err == nil {
			s.record(req.UserID, p.said, res.Message)
		}
		s.metrics.RecordTurn(executed.String(), ModeStream, time.Since(start))
		emit(ctx, out, &Chunk{Type: ChunkDone, TurnID: p.turnID, Intent: executed, Result: res})
	}()

	return out, nil
}

// streamStructured runs the handler and finalizer, yields the whole message and
// then voices it in one pass.
func (s *Service) streamStructured(ctx context.Context, p *plan, out chan<- *Chunk) (*handlers.Result, routing.Intent, bool) {
	res, executed := s.router.Route(ctx, p.classification.Intent, p.classification.Confidence, p.req)
	res = s.finalizer.Finalize(ctx, res, executed.IsConversational())

	if !emit(ctx, out, &Chunk{Type: ChunkText, TurnID: p.turnID, Text: res.Message, Result: res}) {
		return nil, executed, false
	}

	if s.tts != nil {
		audio, errc := s.tts.Synthesize(ctx, tts.Speakable(res.Message))
		if !s.forwardAudio(ctx, p.turnID, audio, errc, out) {
			return nil, executed, false
		}
	}
	return res, executed, true
}

// streamConversation forwards LLM deltas as text chunks while feeding them to
// streaming synthesis. A generation failure is reported through the result's Err.
func (s *Service) streamConversation(ctx context.Context, p *plan, out chan<- *Chunk) (*handlers.Result, bool) {
	focused := p.executed == routing.IntentDocAnalysis
	messages, memoryUsed := s.handlers.PrepareChat(ctx, p.req, focused)

	g, gctx := errgroup.WithContext(ctx)

	var (
		speech   chan string
		ttsDone  chan struct{}
		audioOK  = true
		full     strings.Builder
		genErr   error
		canceled bool
	)
	if s.tts != nil {
		speech = make(chan string, 32)
		ttsDone = make(chan struct{})
		audio, errc := s.tts.SynthesizeStream(gctx, speech)
		g.Go(func() error {
			defer close(ttsDone)
			audioOK = s.forwardAudio(gctx, p.turnID, audio, errc, out)
			return nil
		})
	}

	g.Go(func() error {
		if speech != nil {
			defer close(speech)
		}
		say := func(text string) bool {
			if !emit(gctx, out, &Chunk{Type: ChunkText, TurnID: p.turnID, Text: text}) {
				return false
			}
			if speech != nil {
				select {
				case speech <- text:
				case <-ttsDone:
				case <-gctx.Done():
					return false
				}
			}
			return true
		}

		content, stats, errc := s.llm.ChatStream(gctx, messages, handlers.ChatOptions()...)
		for delta := range content {
			full.WriteString(delta)
			if !say(delta) {
				canceled = true
				return nil
			}
		}
		if genErr = <-errc; genErr != nil {
			if ctx.Err() != nil {
				canceled = true
				return nil
			}
			slog.Warn("chat stream failed", "turn_id", p.turnID, "error", genErr)
			if full.Len() == 0 {
				full.WriteString(handlers.ChatFallback)
				canceled = !say(handlers.ChatFallback)
			}
			return nil
		}
		if st := <-stats; st != nil {
			s.metrics.RecordLLMTokens(st.PromptTokens, st.CompletionTokens)
		}
		return nil
	})

	_ = g.Wait()
	if canceled || !audioOK || ctx.Err() != nil {
		return nil, false
	}

	responseContext := "general"
	if focused {
		responseContext = "document"
	}
	return &handlers.Result{
		Type:    handlers.TypeConversation,
		Message: strings.TrimSpace(full.String()),
		Data: map[string]any{
			"response_type": "casual",
			"context":       responseContext,
			"memory_used":   memoryUsed,
		},
		Err: genErr,
	}, true
}

// forwardAudio relays synthesized frames. Synthesis failures are logged and
// counted but leave the turn intact; it reports false only when ctx ended.
func (s *Service) forwardAudio(ctx context.Context, turnID string, audio <-chan *tts.AudioChunk, errc <-chan error, out chan<- *Chunk) bool {
	for frame := range audio {
		if len(frame.Data) == 0 {
			continue
		}
		if !emit(ctx, out, &Chunk{Type: ChunkAudio, TurnID: turnID, Audio: frame.Data}) {
			// Let the provider observe cancellation and finish.
			for range audio {
			}
			return false
		}
	}

	if err := <-errc; err != nil {
		if ctx.Err() != nil {
			return false
		}
		kind := errs.KindOf(err).String()
		if errs.IsQuotaExceeded(err) {
			kind = "quota"
		}
		s.metrics.RecordTTSFailure(kind)
		slog.Warn("speech synthesis failed, continuing with text only",
			"turn_id", turnID,
			"kind", kind,
			"error", err,
		)
	}
	return true
}

func emit(ctx context.Context, out chan<- *Chunk, c *Chunk) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
