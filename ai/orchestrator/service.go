// Package orchestrator runs a user turn through the whole pipeline:
// reference resolution, classification, routing, finalization and history.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/core/tts"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/finalizer"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/internal/strutil"
	"github.com/hrygo/manas/ai/metrics"
	"github.com/hrygo/manas/ai/resolver"
	"github.com/hrygo/manas/ai/routing"
	"github.com/hrygo/manas/ai/session"
	"github.com/hrygo/manas/store"
)

const attachmentOnlyUtterance = "Please analyze the attached file."

// Execution modes, as recorded in metrics.
const (
	ModeSync   = "sync"
	ModeStream = "stream"
)

// TurnRequest is one user utterance.
type TurnRequest struct {
	UserID      string
	Utterance   string
	Attachments []handlers.Attachment
}

// TurnResponse is the outcome of a buffered turn.
type TurnResponse struct {
	TurnID     string           `json:"turn_id"`
	Utterance  string           `json:"utterance"`
	Intent     routing.Intent   `json:"intent"`
	Confidence float64          `json:"confidence"`
	Executed   routing.Intent   `json:"executed_intent"`
	Result     *handlers.Result `json:"result"`
}

// Config wires the pipeline. Resolver, Finalizer, Learner, TTS and Metrics may be nil.
type Config struct {
	Sessions   *session.Store
	Resolver   *resolver.Resolver
	Classifier *routing.Classifier
	Router     *routing.Router
	Handlers   *handlers.Handlers
	// LLM streams conversational replies.
	LLM       llm.Service
	Finalizer *finalizer.Finalizer
	Learner   *finalizer.Learner
	TTS       tts.Provider
	Metrics   *metrics.Exporter
}

// Service is the turn orchestrator.
type Service struct {
	sessions   *session.Store
	resolver   *resolver.Resolver
	classifier *routing.Classifier
	router     *routing.Router
	handlers   *handlers.Handlers
	llm        llm.Service
	finalizer  *finalizer.Finalizer
	learner    *finalizer.Learner
	tts        tts.Provider
	metrics    *metrics.Exporter
}

// New creates the orchestrator.
func New(cfg Config) *Service {
	return &Service{
		sessions:   cfg.Sessions,
		resolver:   cfg.Resolver,
		classifier: cfg.Classifier,
		router:     cfg.Router,
		handlers:   cfg.Handlers,
		llm:        cfg.LLM,
		finalizer:  cfg.Finalizer,
		learner:    cfg.Learner,
		tts:        cfg.TTS,
		metrics:    cfg.Metrics,
	}
}

// HasTTS reports whether replies can be voiced.
func (s *Service) HasTTS() bool {
	return s.tts != nil
}

// TTS returns the speech provider, or nil.
func (s *Service) TTS() tts.Provider {
	return s.tts
}

func validate(req *TurnRequest) error {
	if req == nil || strings.TrimSpace(req.UserID) == "" {
		return errs.ErrMissingUserID
	}
	if strings.TrimSpace(req.Utterance) == "" && len(req.Attachments) == 0 {
		return errs.ErrEmptyUtterance
	}
	return nil
}

// plan is the classified, ready-to-route form of a turn.
type plan struct {
	turnID         string
	said           string // as recorded in history
	classification routing.Classification
	executed       routing.Intent
	req            *handlers.Request
}

// prepare loads session state, resolves references and classifies the turn.
func (s *Service) prepare(ctx context.Context, req *TurnRequest) *plan {
	history := s.sessions.History(req.UserID)

	profile, err := s.sessions.Profile(ctx, req.UserID)
	if err != nil {
		slog.Warn("continuing without profile", "user_id", req.UserID, "error", err)
		profile = &store.UserProfile{UserID: req.UserID}
	}

	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		utterance = attachmentOnlyUtterance
	}
	said := utterance

	var classification routing.Classification
	if len(req.Attachments) > 0 {
		classification = routing.Classification{Intent: routing.IntentDocAnalysis, Confidence: 1}
	} else {
		utterance = s.resolver.ResolveIfNeeded(ctx, utterance, history)
		classification = s.classifier.Classify(ctx, utterance, history)
	}

	p := &plan{
		turnID:         shortuuid.New(),
		said:           said,
		classification: classification,
		executed:       routing.Effective(classification.Intent, classification.Confidence),
		req: &handlers.Request{
			Utterance:   utterance,
			UserID:      req.UserID,
			Profile:     profile,
			History:     history,
			Attachments: req.Attachments,
		},
	}
	slog.Info("turn classified",
		"turn_id", p.turnID,
		"user_id", req.UserID,
		"utterance", strutil.Truncate(utterance, 80),
		"intent", classification.Intent,
		"confidence", classification.Confidence,
	)
	return p
}

// ProcessTurn runs a buffered turn. It fails only for invalid input or when ctx
// ends while waiting for the user's previous turn.
func (s *Service) ProcessTurn(ctx context.Context, req *TurnRequest) (*TurnResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	start := time.Now()

	release, err := s.sessions.Acquire(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	p := s.prepare(ctx, req)
	res, executed := s.router.Route(ctx, p.classification.Intent, p.classification.Confidence, p.req)
	res = s.finalizer.Finalize(ctx, res, executed.IsConversational())
	if res.Message == "" {
		res.Message = handlers.ChatFallback
	}

	s.record(req.UserID, p.said, res.Message)
	s.metrics.RecordTurn(executed.String(), ModeSync, time.Since(start))

	return &TurnResponse{
		TurnID:     p.turnID,
		Utterance:  req.Utterance,
		Intent:     p.classification.Intent,
		Confidence: p.classification.Confidence,
		Executed:   executed,
		Result:     res,
	}, nil
}

// record appends the exchange to history and schedules profile learning.
func (s *Service) record(userID, said, reply string) {
	s.sessions.Append(userID, session.UserTurn(said), session.AssistantTurn(reply))
	if said != attachmentOnlyUtterance {
		s.learner.Enqueue(userID, said)
	}
}
