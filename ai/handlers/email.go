package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/internal/strutil"
)

const (
	primaryInbox     = "category:primary"
	maxCheckedEmails = 20
	maxAnalyzed      = 10
	maxBodyRunes     = 1500
)

var emailCountPattern = regexp.MustCompile(`\b(\d+)\s*emails?\b`)

type emailQuery struct {
	Count     *int   `json:"count"`
	Filter    string `json:"filter"`
	Summarize bool   `json:"summarize"`
}

type emailTarget struct {
	ThreadID    string `json:"thread_id"`
	MessageID   string `json:"message_id"`
	SenderHint  string `json:"sender_hint"`
	SubjectHint string `json:"subject_hint"`
}

func mailUnavailable(resultType, op string) *Result {
	return clarify(resultType, "I don't have access to your Gmail yet. You can connect it in your settings!",
		errs.Configuration(op, "mail"), map[string]any{"error": "not_authorized"})
}

// senderName strips the address from "Jane Doe <jane@example.com>".
func senderName(from string) string {
	if i := strings.Index(from, "<"); i > 0 {
		return strings.TrimSpace(strings.Trim(strings.TrimSpace(from[:i]), `"`))
	}
	if from == "" {
		return "Unknown"
	}
	return from
}

func subjectLine(e Email, max int) string {
	subject := e.Subject
	if subject == "" {
		subject = "(No Subject)"
	}
	if r := []rune(subject); len(r) > max {
		subject = string(r[:max-3]) + "..."
	}
	return subject
}

func emailLine(i int, e Email, max int) string {
	state := ""
	if e.Unread {
		state = " (unread)"
	}
	return fmt.Sprintf("\n%d. '%s' from %s%s", i, subjectLine(e, max), senderName(e.From), state)
}

// summarizeEmails renders a one-paragraph overview of up to three emails.
func summarizeEmails(emails []Email) string {
	if len(emails) == 0 {
		return "You have no new emails."
	}
	unread := 0
	for _, e := range emails {
		if e.Unread {
			unread++
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d recent %s", len(emails), plural(len(emails), "email"))
	if unread > 0 {
		fmt.Fprintf(&b, " (%d unread)", unread)
	}
	b.WriteString(": ")
	shown := emails
	if len(shown) > 3 {
		shown = shown[:3]
	}
	parts := make([]string, 0, len(shown))
	for _, e := range shown {
		parts = append(parts, fmt.Sprintf("'%s' from %s", subjectLine(e, 40), senderName(e.From)))
	}
	b.WriteString(strings.Join(parts, ", "))
	if len(emails) > 3 {
		fmt.Fprintf(&b, ", and %d more", len(emails)-3)
	}
	b.WriteString(".")
	return b.String()
}

// CheckEmail reports the unread count and lists recent primary-inbox messages.
func (h *Handlers) CheckEmail(ctx context.Context, req *Request) *Result {
	if h.mail == nil {
		return mailUnavailable(TypeEmail, "handlers.check_email")
	}

	prompt := fmt.Sprintf(`%sExtract email query parameters from this request. Return JSON only.
Use the conversation history to resolve pronouns like "those" or "them".

Request: "%s"

Extract:
- count: number of emails requested (default 5)
- filter: "unread", "all", or "today" (default "unread")
- summarize: true if the user wants a summary, false for a list

Examples:
"show me my last 5 emails" -> {"count": 5, "filter": "all", "summarize": false}
"do I have any new emails" -> {"count": 3, "filter": "unread", "summarize": false}
"summarize my last 10 emails" -> {"count": 10, "filter": "all", "summarize": true}`,
		historyBlock(req, 4), req.Utterance)

	params := emailQuery{Filter: "unread"}
	if err := llm.Extract(ctx, h.light, prompt, 100, &params); err != nil {
		if !errs.Is(err, errs.KindResolution) {
			return failure(TypeEmail, "I'm having trouble checking your emails right now.", err)
		}
		params = emailQuery{Filter: "unread"}
	}
	count := 5
	if params.Count != nil && *params.Count > 0 {
		count = min(*params.Count, maxCheckedEmails)
	}

	query := primaryInbox
	switch params.Filter {
	case "all":
	case "today":
		query += " after:" + h.now().Format("2006/01/02")
	default:
		params.Filter = "unread"
		query += " is:unread"
	}

	unread, err := h.mail.UnreadCount(ctx)
	if err != nil {
		return failure(TypeEmail, "I'm having trouble checking your emails right now.", err)
	}
	emails, err := h.mail.ListMessages(ctx, query, count)
	if err != nil {
		return failure(TypeEmail, "I'm having trouble checking your emails right now.", err)
	}

	var message string
	switch {
	case len(emails) == 0 && params.Filter == "unread":
		message = "You have no unread emails. Your inbox is all caught up!"
	case len(emails) == 0:
		message = "I couldn't find any emails matching your request."
	case params.Summarize:
		message = summarizeEmails(emails)
	default:
		var b strings.Builder
		if params.Filter == "unread" {
			fmt.Fprintf(&b, "You have %d unread %s. Here are the latest %d:\n", unread, plural(unread, "email"), len(emails))
		} else {
			fmt.Fprintf(&b, "Here are your last %d %s:\n", len(emails), plural(len(emails), "email"))
		}
		for i, e := range emails {
			b.WriteString(emailLine(i+1, e, 50))
		}
		message = b.String()
	}

	if emails == nil {
		emails = []Email{}
	}
	return &Result{
		Type: TypeEmail,
		Data: map[string]any{
			"unread_count":    unread,
			"emails":          emails,
			"count_requested": count,
			"filter":          params.Filter,
			"source":          "gmail",
		},
		Message: message,
	}
}

// SearchEmail converts the request into a Gmail query restricted to the primary inbox.
func (h *Handlers) SearchEmail(ctx context.Context, req *Request) *Result {
	if h.mail == nil {
		return mailUnavailable(TypeEmailSearch, "handlers.search_email")
	}

	prompt := fmt.Sprintf(`%sExtract the Gmail search query from this request.
Return ONLY the Gmail search syntax. Use operators: from:, subject:, to:, is:unread, newer_than:, older_than:
Use history to resolve pronouns like "from him" or "about that". Do NOT include "category:".

Examples:
- "find emails from John" -> from:John
- "emails about meeting" -> subject:meeting OR meeting
- "messages from boss last week" -> from:boss newer_than:7d

Request: "%s"

Gmail query:`, historyBlock(req, 4), req.Utterance)

	query, err := llm.Ask(ctx, h.light, prompt, 50)
	if err != nil {
		if !errs.Is(err, errs.KindResolution) {
			return failure(TypeEmailSearch, "I'm having trouble searching your emails right now.", err)
		}
		query = req.Utterance
	}
	if !strings.Contains(strings.ToLower(query), "category:") {
		query = primaryInbox + " " + query
	}

	results, err := h.mail.ListMessages(ctx, query, 5)
	if err != nil {
		return failure(TypeEmailSearch, "I'm having trouble searching your emails right now.", err)
	}
	if len(results) == 0 {
		return &Result{
			Type:    TypeEmailSearch,
			Data:    map[string]any{"query": query, "results": []Email{}},
			Message: fmt.Sprintf("I couldn't find any emails matching '%s'.", strings.TrimSpace(strings.TrimPrefix(query, primaryInbox))),
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d %s matching your search:\n", len(results), plural(len(results), "email"))
	for i, e := range results {
		if i == 3 {
			break
		}
		b.WriteString(emailLine(i+1, e, 40))
	}
	if len(results) > 3 {
		fmt.Fprintf(&b, "\n\n...and %d more.", len(results)-3)
	}

	return &Result{
		Type:    TypeEmailSearch,
		Data:    map[string]any{"query": query, "results": results, "source": "gmail"},
		Message: b.String(),
	}
}

// AnalyzeEmail answers a question about the content of recent emails.
func (h *Handlers) AnalyzeEmail(ctx context.Context, req *Request) *Result {
	if h.mail == nil {
		return mailUnavailable(TypeEmailAnalysis, "handlers.analyze_email")
	}

	count := 5
	if m := emailCountPattern.FindStringSubmatch(strings.ToLower(req.Utterance)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			count = min(n, maxAnalyzed)
		}
	}

	emails, err := h.mail.ListMessages(ctx, primaryInbox, count)
	if err != nil {
		return failure(TypeEmailAnalysis, "I'm having trouble analyzing your emails right now.", err)
	}
	if len(emails) == 0 {
		return &Result{
			Type:    TypeEmailAnalysis,
			Data:    map[string]any{"emails_analyzed": 0},
			Message: "You don't have any recent emails in your Primary inbox to analyze.",
		}
	}

	// Bodies are fetched concurrently; a failed fetch falls back to the snippet.
	bodies := make([]string, len(emails))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, e := range emails {
		g.Go(func() error {
			full, err := h.mail.Message(gctx, e.ID)
			if err != nil || full.Body == "" {
				bodies[i] = e.Snippet
				return nil
			}
			bodies[i] = full.Body
			return nil
		})
	}
	_ = g.Wait()

	var digest strings.Builder
	for i, e := range emails {
		body := bodies[i]
		if r := []rune(body); len(r) > maxBodyRunes {
			body = string(r[:maxBodyRunes]) + "...[truncated]"
		}
		fmt.Fprintf(&digest, "\n--- Email %d ---\nFrom: %s\nSubject: %s\nDate: %s\nContent: %s\n",
			i+1, e.From, subjectLine(e, 200), e.Date, body)
	}

	prompt := fmt.Sprintf(`%sYou are Manas, analyzing the user's emails to answer their question.
Use history if the question refers to previous turns.

User's question: "%s"

Here are their last %d emails:
%s
Answer the question directly and conversationally. Mention subjects or senders when relevant.
Keep the response under 3 sentences unless they asked for a detailed summary.`,
		historyBlock(req, 4), req.Utterance, len(emails), digest.String())

	analysis, _, err := h.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)}, llm.WithTemperature(0.7), llm.WithMaxTokens(300))
	if err != nil {
		return failure(TypeEmailAnalysis, "I'm having trouble analyzing your emails right now.", err)
	}
	analysis = strings.TrimSpace(analysis)
	if analysis == "" {
		return failure(TypeEmailAnalysis, "I'm having trouble analyzing your emails right now.",
			errs.Resolution("handlers.analyze_email", "empty analysis"))
	}

	return &Result{
		Type:    TypeEmailAnalysis,
		Data:    map[string]any{"emails_analyzed": len(emails), "question": req.Utterance},
		Message: analysis,
	}
}

// ReadEmail opens the thread the user refers to, resolving "the one from Sarah" through history.
func (h *Handlers) ReadEmail(ctx context.Context, req *Request) *Result {
	if h.mail == nil {
		return mailUnavailable(TypeEmailThread, "handlers.read_email")
	}

	prompt := fmt.Sprintf(`%sThe user wants to read a specific email.
Identify the target email from the request and the conversation history.
Look for things like "the first one", "the one from Sarah", "that flight email".

Extract:
- thread_id: thread ID if available in history, else ""
- message_id: message ID if available, else ""
- sender_hint: name of the sender mentioned, else ""
- subject_hint: a few words from the subject, else ""

Return ONLY JSON: {"thread_id": "", "message_id": "", "sender_hint": "", "subject_hint": ""}

Request: "%s"`, historyBlock(req, 6), req.Utterance)

	var target emailTarget
	if err := llm.Extract(ctx, h.light, prompt, 150, &target); err != nil && !errs.Is(err, errs.KindResolution) {
		return failure(TypeEmailThread, "I'm having trouble opening that email right now.", err)
	}

	if target.ThreadID == "" && target.MessageID == "" {
		var q strings.Builder
		if s := strings.TrimSpace(target.SenderHint); s != "" {
			fmt.Fprintf(&q, "from:%s ", s)
		}
		if s := strings.TrimSpace(target.SubjectHint); s != "" {
			fmt.Fprintf(&q, "subject:(%s) ", s)
		}
		query := strings.TrimSpace(q.String())
		if query == "" {
			query = req.Utterance
		}
		found, err := h.mail.ListMessages(ctx, primaryInbox+" "+query, 1)
		if err != nil {
			return failure(TypeEmailThread, "I'm having trouble opening that email right now.", err)
		}
		if len(found) > 0 {
			target.MessageID, target.ThreadID = found[0].ID, found[0].ThreadID
		}
	}
	if target.ThreadID == "" && target.MessageID == "" {
		return clarify(TypeEmailThread, "I couldn't figure out which email you'd like me to read. Could you be more specific?",
			errs.NotFound("handlers.read_email", strutil.Truncate(req.Utterance, 60)), map[string]any{"error": "not_found"})
	}

	if target.ThreadID == "" {
		msg, err := h.mail.Message(ctx, target.MessageID)
		if err != nil {
			return failure(TypeEmailThread, "I had trouble loading that email. Please try again.", err)
		}
		target.ThreadID = msg.ThreadID
		if target.ThreadID == "" {
			return &Result{
				Type:    TypeEmailThread,
				Data:    map[string]any{"subject": msg.Subject, "messages": []Email{*msg}, "count": 1},
				Message: fmt.Sprintf("Here is the email from %s.", senderName(msg.From)),
			}
		}
	}

	messages, err := h.mail.Thread(ctx, target.ThreadID)
	if err != nil {
		return failure(TypeEmailThread, "I had trouble loading that email. Please try again.", err)
	}
	if len(messages) == 0 {
		return clarify(TypeEmailThread, "That email thread appears to be empty.",
			errs.NotFound("handlers.read_email", target.ThreadID), map[string]any{"error": "empty_thread"})
	}

	subject := subjectLine(messages[0], 200)
	return &Result{
		Type: TypeEmailThread,
		Data: map[string]any{
			"thread_id": target.ThreadID,
			"subject":   subject,
			"messages":  messages,
			"count":     len(messages),
		},
		Message: fmt.Sprintf("I've opened the thread '%s'. It has %d %s.", subject, len(messages), plural(len(messages), "message")),
	}
}
