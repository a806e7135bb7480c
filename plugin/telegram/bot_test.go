package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/orchestrator"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file server")
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) voices() []tgbotapi.VoiceConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.VoiceConfig
	for _, c := range f.sent {
		if v, ok := c.(tgbotapi.VoiceConfig); ok {
			out = append(out, v)
		}
	}
	return out
}

type fakeTurns struct {
	reqs  []*orchestrator.TurnRequest
	reply string
	err   error
}

func (f *fakeTurns) ProcessTurn(_ context.Context, req *orchestrator.TurnRequest) (*orchestrator.TurnResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.TurnResponse{Result: &handlers.Result{Type: "chat", Message: f.reply}}, nil
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 42,
			From:      &tgbotapi.User{ID: 7},
			Chat:      &tgbotapi.Chat{ID: 99},
			Text:      text,
		},
	}
}

func TestHandleUpdate_TextTurn(t *testing.T) {
	api := &fakeAPI{}
	turns := &fakeTurns{reply: "Hello there"}
	speech := mocks.NewMockTTS()
	bot := NewWithAPI(api, turns, speech)

	require.NoError(t, bot.HandleUpdate(context.Background(), textUpdate("  hi manas  ")))

	require.Len(t, turns.reqs, 1)
	assert.Equal(t, "telegram:7", turns.reqs[0].UserID)
	assert.Equal(t, "hi manas", turns.reqs[0].Utterance)
	assert.Empty(t, turns.reqs[0].Attachments)

	assert.Equal(t, []string{"Hello there"}, api.texts())
	require.Len(t, api.requests, 1)
	action, ok := api.requests[0].(tgbotapi.ChatActionConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ChatTyping, action.Action)

	require.Len(t, speech.Texts(), 1)
	assert.Contains(t, speech.Texts()[0], "Hello there")
	voices := api.voices()
	require.Len(t, voices, 1)
	assert.Equal(t, int64(99), voices[0].ChatID)
}

func TestHandleUpdate_Start(t *testing.T) {
	api := &fakeAPI{}
	turns := &fakeTurns{}
	bot := NewWithAPI(api, turns, nil)

	require.NoError(t, bot.HandleUpdate(context.Background(), textUpdate("/start")))

	assert.Empty(t, turns.reqs)
	assert.Equal(t, []string{greeting}, api.texts())
}

func TestHandleUpdate_Ignored(t *testing.T) {
	api := &fakeAPI{}
	turns := &fakeTurns{}
	bot := NewWithAPI(api, turns, nil)

	require.NoError(t, bot.HandleUpdate(context.Background(), tgbotapi.Update{}))
	require.NoError(t, bot.HandleUpdate(context.Background(), textUpdate("   ")))

	assert.Empty(t, turns.reqs)
	assert.Empty(t, api.sent)
}

func TestHandleUpdate_Document(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/doc-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL}
	turns := &fakeTurns{reply: "It is an invoice."}
	bot := NewWithAPI(api, turns, nil)

	update := textUpdate("")
	update.Message.Caption = "what is this?"
	update.Message.Document = &tgbotapi.Document{
		FileID:   "doc-1",
		FileName: "invoice.pdf",
		MimeType: "application/pdf",
		FileSize: 13,
	}
	require.NoError(t, bot.HandleUpdate(context.Background(), update))

	require.Len(t, turns.reqs, 1)
	req := turns.reqs[0]
	assert.Equal(t, "what is this?", req.Utterance)
	require.Len(t, req.Attachments, 1)
	assert.Equal(t, "invoice.pdf", req.Attachments[0].Name)
	assert.Equal(t, "application/pdf", req.Attachments[0].MIMEType)
	assert.Equal(t, []byte("%PDF-1.4 fake"), req.Attachments[0].Data)
	assert.Equal(t, []string{"It is an invoice."}, api.texts())
}

func TestHandleUpdate_Photo(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/big", r.URL.Path)
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	api := &fakeAPI{fileURL: srv.URL}
	turns := &fakeTurns{reply: "A cat."}
	bot := NewWithAPI(api, turns, nil)

	update := textUpdate("")
	update.Message.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}}
	require.NoError(t, bot.HandleUpdate(context.Background(), update))

	require.Len(t, turns.reqs, 1)
	require.Len(t, turns.reqs[0].Attachments, 1)
	assert.Equal(t, "photo.jpg", turns.reqs[0].Attachments[0].Name)
	assert.Equal(t, "image/png", turns.reqs[0].Attachments[0].MIMEType)
}

func TestHandleUpdate_TooLarge(t *testing.T) {
	api := &fakeAPI{}
	turns := &fakeTurns{}
	bot := NewWithAPI(api, turns, nil)

	update := textUpdate("read this")
	update.Message.Document = &tgbotapi.Document{FileID: "huge", FileSize: 25 << 20}
	require.NoError(t, bot.HandleUpdate(context.Background(), update))

	assert.Empty(t, turns.reqs)
	require.Len(t, api.texts(), 1)
	assert.Contains(t, api.texts()[0], "under 20 MB")
}

func TestHandleUpdate_SpeechFailureStillReplies(t *testing.T) {
	api := &fakeAPI{}
	turns := &fakeTurns{reply: "Done."}
	speech := mocks.NewMockTTS().WithError(errors.New("quota exceeded"))
	bot := NewWithAPI(api, turns, speech)

	require.NoError(t, bot.HandleUpdate(context.Background(), textUpdate("add milk")))

	assert.Equal(t, []string{"Done."}, api.texts())
	assert.Empty(t, api.voices())
}

func TestHandleUpdate_TurnError(t *testing.T) {
	api := &fakeAPI{}
	turns := &fakeTurns{err: errors.New("boom")}
	bot := NewWithAPI(api, turns, nil)

	err := bot.HandleUpdate(context.Background(), textUpdate("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, api.texts())
}

func TestRun_RequiresBotAPI(t *testing.T) {
	bot := NewWithAPI(&fakeAPI{}, &fakeTurns{}, nil)
	assert.Error(t, bot.Run(context.Background()))
}
