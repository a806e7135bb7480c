// Package telegram exposes the assistant as a Telegram bot over long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hrygo/manas/ai/core/tts"
	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/ai/orchestrator"
)

const (
	MaxPhotoSizeMB    = 20 // Telegram photo size limit
	MaxDocumentSizeMB = 20 // getFile download limit for bots

	pollTimeout  = 60 // seconds
	userIDPrefix = "telegram:"
	voiceName    = "reply.mp3"

	greeting = "Hi, I'm Manas. Ask me about your day, your tasks, the weather, or anything else."
	tooLarge = "That file is too large for me to read. Please send something under %d MB."
)

// API is the subset of the Bot API the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Turns runs one buffered assistant turn.
type Turns interface {
	ProcessTurn(ctx context.Context, req *orchestrator.TurnRequest) (*orchestrator.TurnResponse, error)
}

// Config holds configuration for the Telegram bot.
type Config struct {
	BotToken string
}

// Bot answers Telegram messages with assistant turns, voicing replies when
// speech synthesis is available.
type Bot struct {
	api    API
	bot    *tgbotapi.BotAPI // nil when built around a custom API
	turns  Turns
	speech tts.Provider
	client *http.Client
}

// New connects to the Bot API. speech may be nil.
func New(cfg Config, turns Turns, speech tts.Provider) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	b := NewWithAPI(bot, turns, speech)
	b.bot = bot
	return b, nil
}

// NewWithAPI builds a bot around api. Run is unavailable; feed updates to HandleUpdate.
func NewWithAPI(api API, turns Turns, speech tts.Provider) *Bot {
	return &Bot{
		api:    api,
		turns:  turns,
		speech: speech,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DisableCompression: true,
			},
		},
	}
}

// Run long-polls for updates until ctx is done. Updates are handled one at a time.
func (b *Bot) Run(ctx context.Context) error {
	if b.bot == nil {
		return fmt.Errorf("telegram: bot was not created with New")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.bot.GetUpdatesChan(u)
	defer b.bot.StopReceivingUpdates()

	slog.Info("telegram bot started", "username", b.bot.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.HandleUpdate(ctx, update); err != nil {
				slog.Warn("telegram: failed to handle update", "update_id", update.UpdateID, "error", err)
			}
		}
	}
}

// HandleUpdate answers a single update. Non-message updates are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		text = strings.TrimSpace(msg.Caption)
	}
	if strings.HasPrefix(text, "/start") {
		return b.reply(chatID, msg.MessageID, greeting)
	}

	attachments, err := b.attachments(ctx, msg)
	if err != nil {
		var tooBig *fileTooLargeError
		if errors.As(err, &tooBig) {
			return b.reply(chatID, msg.MessageID, fmt.Sprintf(tooLarge, tooBig.limitMB))
		}
		return err
	}
	if text == "" && len(attachments) == 0 {
		return nil
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		slog.Debug("telegram: chat action failed", "chat_id", chatID, "error", err)
	}

	resp, err := b.turns.ProcessTurn(ctx, &orchestrator.TurnRequest{
		UserID:      userIDPrefix + strconv.FormatInt(msg.From.ID, 10),
		Utterance:   text,
		Attachments: attachments,
	})
	if err != nil {
		return fmt.Errorf("failed to process turn: %w", err)
	}

	message := resp.Result.Message
	if err := b.reply(chatID, msg.MessageID, message); err != nil {
		return err
	}
	b.voice(ctx, chatID, message)
	return nil
}

func (b *Bot) reply(chatID int64, replyTo int, text string) error {
	out := tgbotapi.NewMessage(chatID, text)
	out.ReplyToMessageID = replyTo
	if _, err := b.api.Send(out); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// voice sends the reply as a voice message. Failures only cost the audio.
func (b *Bot) voice(ctx context.Context, chatID int64, text string) {
	if b.speech == nil {
		return
	}
	speakable := tts.Speakable(text)
	if speakable == "" {
		return
	}

	audio, err := tts.Collect(b.speech.Synthesize(ctx, speakable))
	if err != nil {
		slog.Warn("telegram: speech synthesis failed", "chat_id", chatID, "error", err)
		return
	}
	if len(audio) == 0 {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: voiceName, Bytes: audio})); err != nil {
		slog.Warn("telegram: failed to send voice", "chat_id", chatID, "error", err)
	}
}

type fileTooLargeError struct {
	limitMB int
}

func (e *fileTooLargeError) Error() string {
	return fmt.Sprintf("file exceeds %d MB", e.limitMB)
}

// attachments downloads the message's document or largest photo.
func (b *Bot) attachments(ctx context.Context, msg *tgbotapi.Message) ([]handlers.Attachment, error) {
	switch {
	case msg.Document != nil:
		doc := msg.Document
		if doc.FileSize > MaxDocumentSizeMB<<20 {
			return nil, &fileTooLargeError{limitMB: MaxDocumentSizeMB}
		}
		data, mimeType, err := b.download(ctx, doc.FileID, MaxDocumentSizeMB)
		if err != nil {
			return nil, err
		}
		if doc.MimeType != "" {
			mimeType = doc.MimeType
		}
		return []handlers.Attachment{{Name: doc.FileName, MIMEType: mimeType, Data: data}}, nil

	case len(msg.Photo) > 0:
		largest := msg.Photo[len(msg.Photo)-1]
		if largest.FileSize > MaxPhotoSizeMB<<20 {
			return nil, &fileTooLargeError{limitMB: MaxPhotoSizeMB}
		}
		data, mimeType, err := b.download(ctx, largest.FileID, MaxPhotoSizeMB)
		if err != nil {
			return nil, err
		}
		return []handlers.Attachment{{Name: "photo.jpg", MIMEType: mimeType, Data: data}}, nil
	}
	return nil, nil
}

// download fetches a file from Telegram, refusing bodies over limitMB.
func (b *Bot) download(ctx context.Context, fileID string, limitMB int) ([]byte, string, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get file link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	limit := int64(limitMB) << 20
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", &fileTooLargeError{limitMB: limitMB}
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	slog.Debug("telegram: downloaded media",
		"file_id", fileID,
		"size", len(data),
		"mime_type", mimeType,
	)
	return data, mimeType, nil
}
