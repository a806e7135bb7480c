package google

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/plugin/apiclient"
)

const (
	DefaultGmailURL = "https://gmail.googleapis.com/gmail/v1"

	metadataFetchers = 5
	noSubject        = "(No Subject)"
	unknownSender    = "Unknown"
)

// Gmail implements handlers.Mail on the authorized user's mailbox.
type Gmail struct {
	baseURL string
	client  *apiclient.Client
}

// NewGmail creates a Gmail client over an authorized HTTP client.
// An empty baseURL uses DefaultGmailURL.
func NewGmail(hc *http.Client, baseURL string, ratePerSecond int) *Gmail {
	if baseURL == "" {
		baseURL = DefaultGmailURL
	}
	return &Gmail{
		baseURL: strings.TrimRight(baseURL, "/") + "/users/me",
		client:  apiclient.New("gmail", apiclient.WithHTTPClient(hc), apiclient.WithRate(ratePerSecond)),
	}
}

type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type messagePart struct {
	MimeType string        `json:"mimeType"`
	Headers  []header      `json:"headers"`
	Body     partBody      `json:"body"`
	Parts    []messagePart `json:"parts"`
}

type partBody struct {
	Data string `json:"data"`
}

type message struct {
	ID       string      `json:"id"`
	ThreadID string      `json:"threadId"`
	LabelIDs []string    `json:"labelIds"`
	Snippet  string      `json:"snippet"`
	Payload  messagePart `json:"payload"`
}

func (p messagePart) header(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func toEmail(m message, withBody bool) handlers.Email {
	e := handlers.Email{
		ID:       m.ID,
		ThreadID: m.ThreadID,
		From:     m.Payload.header("From"),
		Subject:  m.Payload.header("Subject"),
		Date:     m.Payload.header("Date"),
		Snippet:  m.Snippet,
		Unread:   slices.Contains(m.LabelIDs, "UNREAD"),
	}
	if e.Subject == "" {
		e.Subject = noSubject
	}
	if e.From == "" {
		e.From = unknownSender
	}
	if withBody {
		e.Body = extractBody(m.Payload)
	}
	return e
}

// UnreadCount returns the number of unread messages in the inbox.
func (g *Gmail) UnreadCount(ctx context.Context) (int, error) {
	var label struct {
		MessagesUnread int `json:"messagesUnread"`
	}
	if err := g.client.GetJSON(ctx, g.baseURL+"/labels/INBOX", nil, &label); err != nil {
		return 0, err
	}
	return label.MessagesUnread, nil
}

// ListMessages returns the headers of up to max messages matching query, newest first.
func (g *Gmail) ListMessages(ctx context.Context, query string, max int) ([]handlers.Email, error) {
	params := url.Values{"maxResults": {strconv.Itoa(max)}}
	if query != "" {
		params.Set("q", query)
	}

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := g.client.GetJSON(ctx, g.baseURL+"/messages", params, &list); err != nil {
		return nil, err
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	emails := make([]handlers.Email, len(list.Messages))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(metadataFetchers)
	for i, ref := range list.Messages {
		eg.Go(func() error {
			params := url.Values{
				"format":          {"metadata"},
				"metadataHeaders": {"From", "Subject", "Date"},
			}
			var m message
			if err := g.client.GetJSON(egCtx, g.baseURL+"/messages/"+url.PathEscape(ref.ID), params, &m); err != nil {
				return err
			}
			emails[i] = toEmail(m, false)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return emails, nil
}

// Message returns one message with its decoded body.
func (g *Gmail) Message(ctx context.Context, id string) (*handlers.Email, error) {
	var m message
	if err := g.client.GetJSON(ctx, g.baseURL+"/messages/"+url.PathEscape(id), url.Values{"format": {"full"}}, &m); err != nil {
		return nil, err
	}
	e := toEmail(m, true)
	return &e, nil
}

// Thread returns every message of a thread in order, with bodies.
func (g *Gmail) Thread(ctx context.Context, threadID string) ([]handlers.Email, error) {
	var thread struct {
		Messages []message `json:"messages"`
	}
	if err := g.client.GetJSON(ctx, g.baseURL+"/threads/"+url.PathEscape(threadID), url.Values{"format": {"full"}}, &thread); err != nil {
		return nil, err
	}

	emails := make([]handlers.Email, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		emails = append(emails, toEmail(m, true))
	}
	return emails, nil
}

var _ handlers.Mail = (*Gmail)(nil)
