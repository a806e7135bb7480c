package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hrygo/manas/ai/errs"
)

const (
	DefaultElevenLabsURL   = "https://api.elevenlabs.io"
	DefaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel
	DefaultElevenLabsModel = "eleven_turbo_v2"
	DefaultOutputFormat    = "mp3_44100_128"

	frameSize = 8 * 1024
)

// Config configures the ElevenLabs provider.
type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	// BaseURL is the REST endpoint; the websocket endpoint is derived from it.
	BaseURL string
	Timeout time.Duration // default: 30s
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var defaultVoiceSettings = voiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.75,
	Style:           0,
	UseSpeakerBoost: true,
}

// ElevenLabs synthesizes speech with the ElevenLabs API.
// Whole texts go through the HTTP streaming endpoint, incremental text through
// the stream-input websocket.
type ElevenLabs struct {
	cfg    Config
	client *http.Client
	dialer *websocket.Dialer
}

// NewElevenLabs creates an ElevenLabs provider.
func NewElevenLabs(cfg Config) (*ElevenLabs, error) {
	if cfg.APIKey == "" {
		return nil, errs.Configuration("tts.elevenlabs", "api key")
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultElevenLabsVoice
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultElevenLabsModel
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	slog.Info("ElevenLabs TTS initialized", "voice", cfg.VoiceID, "model", cfg.ModelID)
	return &ElevenLabs{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Synthesize implements Provider.
func (p *ElevenLabs) Synthesize(ctx context.Context, text string) (<-chan *AudioChunk, <-chan error) {
	audio := make(chan *AudioChunk, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(audio)
		defer close(errc)

		if strings.TrimSpace(text) == "" {
			return
		}
		if err := p.synthesize(ctx, text, audio); err != nil {
			errc <- err
		}
	}()
	return audio, errc
}

func (p *ElevenLabs) synthesize(ctx context.Context, text string, audio chan<- *AudioChunk) error {
	const op = "tts.elevenlabs.synthesize"
	start := time.Now()

	body, err := json.Marshal(map[string]any{
		"text":           text,
		"model_id":       p.cfg.ModelID,
		"voice_settings": defaultVoiceSettings,
	})
	if err != nil {
		return errs.Provider(op, err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
		p.cfg.BaseURL, url.PathEscape(p.cfg.VoiceID), url.QueryEscape(p.cfg.OutputFormat))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.Provider(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return errs.Provider(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(op, resp.StatusCode, string(msg))
	}

	total, index := 0, 0
	buf := make([]byte, frameSize)
	for {
		n, readErr := io.ReadFull(resp.Body, buf)
		if n > 0 {
			chunk := &AudioChunk{Data: append([]byte(nil), buf[:n]...), Index: index}
			if err := send(ctx, audio, chunk); err != nil {
				return err
			}
			index++
			total += n
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return errs.Provider(op, readErr)
		}
	}

	slog.Debug("ElevenLabs synthesis complete",
		"chars", len(text),
		"bytes", total,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return send(ctx, audio, &AudioChunk{Index: index, Final: true})
}

// streamMessage is a client message on the stream-input websocket.
type streamMessage struct {
	Text                 string         `json:"text"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

// streamReply is a server message on the stream-input websocket.
type streamReply struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// SynthesizeStream implements Provider.
func (p *ElevenLabs) SynthesizeStream(ctx context.Context, deltas <-chan string) (<-chan *AudioChunk, <-chan error) {
	audio := make(chan *AudioChunk, 16)
	errc := make(chan error, 1)

	go func() {
		defer close(audio)
		defer close(errc)

		if err := p.stream(ctx, deltas, audio); err != nil {
			errc <- err
		}
	}()
	return audio, errc
}

func (p *ElevenLabs) stream(ctx context.Context, deltas <-chan string, audio chan<- *AudioChunk) error {
	const op = "tts.elevenlabs.stream"
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	header := http.Header{}
	header.Set("xi-api-key", p.cfg.APIKey)
	conn, resp, err := p.dialer.DialContext(ctx, p.streamURL(), header)
	if err != nil {
		if resp != nil {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return statusError(op, resp.StatusCode, string(msg))
		}
		return errs.Provider(op, err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the caller goes away.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(streamMessage{Text: " ", VoiceSettings: &defaultVoiceSettings}); err != nil {
		return errs.Provider(op, err)
	}

	writeErr := make(chan error, 1)
	go func() {
		err := p.feed(ctx, conn, deltas)
		writeErr <- err
		if err != nil {
			conn.Close()
		}
	}()

	index := 0
	for {
		var reply streamReply
		if err := conn.ReadJSON(&reply); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if werr := drain(writeErr); werr != nil {
				return errs.Provider(op, werr)
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return errs.Provider(op, err)
		}

		if reply.Error != "" {
			return statusError(op, 0, reply.Error+": "+reply.Message)
		}
		if reply.Audio != "" {
			data, err := base64.StdEncoding.DecodeString(reply.Audio)
			if err != nil {
				slog.Warn("dropping undecodable audio frame", "error", err)
			} else {
				if err := send(ctx, audio, &AudioChunk{Data: data, Index: index}); err != nil {
					return err
				}
				index++
			}
		}
		if reply.IsFinal {
			break
		}
	}

	if err := drain(writeErr); err != nil {
		return errs.Provider(op, err)
	}
	return send(ctx, audio, &AudioChunk{Index: index, Final: true})
}

// feed forwards speakable sentences from deltas and closes the input with an empty text.
func (p *ElevenLabs) feed(ctx context.Context, conn *websocket.Conn, deltas <-chan string) error {
	var sentences SentenceBuffer
	write := func(s string) error {
		s = Speakable(s)
		if s == "" {
			return nil
		}
		return conn.WriteJSON(streamMessage{Text: s + " ", TryTriggerGeneration: true})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delta, ok := <-deltas:
			if !ok {
				if err := write(sentences.Flush()); err != nil {
					return err
				}
				return conn.WriteJSON(streamMessage{Text: ""})
			}
			if err := write(sentences.Push(delta)); err != nil {
				return err
			}
		}
	}
}

func (p *ElevenLabs) streamURL() string {
	base := p.cfg.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	q.Set("model_id", p.cfg.ModelID)
	q.Set("output_format", p.cfg.OutputFormat)
	return fmt.Sprintf("%s/v1/text-to-speech/%s/stream-input?%s", base, url.PathEscape(p.cfg.VoiceID), q.Encode())
}

// statusError classifies an API failure. ElevenLabs reports exhausted credits
// as "quota_exceeded".
func statusError(op string, status int, body string) error {
	err := fmt.Errorf("elevenlabs status %d: %s", status, strings.TrimSpace(body))
	if strings.Contains(body, "quota_exceeded") {
		return errs.ProviderQuota(op, err)
	}
	return errs.Provider(op, err)
}

func send(ctx context.Context, audio chan<- *AudioChunk, chunk *AudioChunk) error {
	select {
	case audio <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain returns the writer's result if it has finished.
func drain(errc <-chan error) error {
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}

var _ Provider = (*ElevenLabs)(nil)
