package server

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/hrygo/manas/ai"
	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/core/tts"
	"github.com/hrygo/manas/ai/finalizer"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/metrics"
	"github.com/hrygo/manas/ai/orchestrator"
	"github.com/hrygo/manas/ai/resolver"
	"github.com/hrygo/manas/ai/routing"
	"github.com/hrygo/manas/ai/session"
	"github.com/hrygo/manas/internal/profile"
	"github.com/hrygo/manas/plugin/google"
	"github.com/hrygo/manas/plugin/news"
	"github.com/hrygo/manas/plugin/weather"
	"github.com/hrygo/manas/plugin/yelp"
	"github.com/hrygo/manas/plugin/youcom"
	"github.com/hrygo/manas/store"
)

// Assistant is the wired turn pipeline and the collaborators it owns.
type Assistant struct {
	Turns   *orchestrator.Service
	Learner *finalizer.Learner
	Speech  tts.Provider // nil when TTS is not configured
	LLM     llm.Service
}

// NewAssistant builds the pipeline from the profile. Domain services whose
// credentials are missing are left out and their intents degrade gracefully.
func NewAssistant(ctx context.Context, p *profile.Profile, st *store.Store, m *metrics.Exporter) (*Assistant, error) {
	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid AI configuration")
	}

	chat, err := llm.NewService(&aiConfig.LLM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LLM service")
	}
	light, err := llm.NewService(&aiConfig.LightLLM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create light LLM service")
	}
	slog.Info("LLM services initialized",
		"provider", aiConfig.LLM.Provider,
		"model", aiConfig.LLM.Model,
		"light_model", aiConfig.LightLLM.Model,
	)

	sessions := session.NewStore(st)
	res := resolver.New(light)

	handlerConfig := handlers.Config{
		LLM:           chat,
		LightLLM:      light,
		Tasks:         st,
		Memories:      st,
		Continuations: sessions,
		Resolver:      res,
		Metrics:       m,
	}
	wireServices(ctx, p, &handlerConfig)
	h := handlers.New(handlerConfig)

	var speech tts.Provider
	if aiConfig.TTSEnabled {
		el, err := tts.NewElevenLabs(aiConfig.TTS)
		if err != nil {
			slog.Warn("speech synthesis disabled", "error", err)
		} else {
			speech = el
			slog.Info("speech synthesis enabled", "voice_id", aiConfig.TTS.VoiceID)
		}
	}

	learner := finalizer.NewLearner(light, sessions, m, aiConfig.Learner)
	classifier := routing.NewClassifier(light, routing.NewClassificationCache(routing.CacheConfig{}), m)

	return &Assistant{
		Turns: orchestrator.New(orchestrator.Config{
			Sessions:   sessions,
			Resolver:   res,
			Classifier: classifier,
			Router:     routing.NewRouter(h, m),
			Handlers:   h,
			LLM:        chat,
			Finalizer:  finalizer.New(chat, m),
			Learner:    learner,
			TTS:        speech,
			Metrics:    m,
		}),
		Learner: learner,
		Speech:  speech,
		LLM:     chat,
	}, nil
}

// Close drains the background learner.
func (a *Assistant) Close() {
	a.Learner.Close()
}

// wireServices attaches every domain service the profile has credentials for.
func wireServices(ctx context.Context, p *profile.Profile, cfg *handlers.Config) {
	rate := p.OutboundRatePerSec

	if w, err := weather.NewGoogle(weather.Config{APIKey: p.GoogleAPIKey, RatePerSecond: rate}); err != nil {
		disabled("weather", err)
	} else {
		cfg.Weather = w
	}
	cfg.Locator = weather.NewIPLocator("")

	if r, err := yelp.New(yelp.Config{APIKey: p.YelpAPIKey, RatePerSecond: rate}); err != nil {
		disabled("restaurants", err)
	} else {
		cfg.Restaurants = r
	}

	if n, err := news.New(news.Config{APIKey: p.NewsAPIKey, RatePerSecond: rate}); err != nil {
		disabled("news", err)
	} else {
		cfg.News = n
	}

	if s, err := youcom.New(youcom.Config{APIKey: p.YouComAPIKey, RatePerSecond: rate}); err != nil {
		disabled("web search", err)
	} else {
		cfg.Search = s
	}

	hc, err := google.HTTPClient(ctx, google.Credentials{
		ClientID:     p.GoogleClientID,
		ClientSecret: p.GoogleClientSecret,
		RefreshToken: p.GoogleRefreshToken,
	})
	if err != nil {
		disabled("calendar and mail", err)
		return
	}
	cfg.Calendar = google.NewCalendar(hc, "", rate)
	cfg.Mail = google.NewGmail(hc, "", rate)
}

func disabled(capability string, err error) {
	slog.Info("capability disabled", "capability", capability, "reason", err)
}
