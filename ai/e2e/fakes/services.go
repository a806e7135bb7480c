// Package fakes provides in-memory implementations of the handler collaborators for tests.
package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
)

// Calendar is an in-memory handlers.Calendar.
type Calendar struct {
	mu     sync.Mutex
	events []handlers.Event
	seq    int
	// Err fails every call when set.
	Err error
}

// NewCalendar creates a Calendar seeded with events.
func NewCalendar(events ...handlers.Event) *Calendar {
	c := &Calendar{}
	for _, e := range events {
		c.add(e)
	}
	return c
}

func (c *Calendar) add(e handlers.Event) handlers.Event {
	c.seq++
	if e.ID == "" {
		e.ID = fmt.Sprintf("event-%d", c.seq)
	}
	c.events = append(c.events, e)
	return e
}

func (c *Calendar) ListEvents(_ context.Context, start, end time.Time) ([]handlers.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	var out []handlers.Event
	for _, e := range c.events {
		if !e.Start.Before(start) && !e.Start.After(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *Calendar) CreateEvent(_ context.Context, summary string, start, end time.Time) (*handlers.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	e := c.add(handlers.Event{Summary: summary, Start: start, End: end})
	return &e, nil
}

func (c *Calendar) UpdateEvent(_ context.Context, id string, patch handlers.EventPatch) (*handlers.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	for i := range c.events {
		e := &c.events[i]
		if e.ID != id {
			continue
		}
		if patch.Summary != nil {
			e.Summary = *patch.Summary
		}
		if patch.Start != nil {
			e.Start = *patch.Start
		}
		if patch.End != nil {
			e.End = *patch.End
		}
		out := *e
		return &out, nil
	}
	return nil, errs.NotFound("fakes.update_event", id)
}

func (c *Calendar) DeleteEvent(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	for i, e := range c.events {
		if e.ID == id {
			c.events = append(c.events[:i], c.events[i+1:]...)
			return nil
		}
	}
	return errs.NotFound("fakes.delete_event", id)
}

// Events returns a snapshot of every stored event.
func (c *Calendar) Events() []handlers.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]handlers.Event(nil), c.events...)
}

// Mail is a canned handlers.Mail. ListMessages ignores the query except for is:unread.
type Mail struct {
	Emails []handlers.Email
	// Bodies maps message ids to full bodies.
	Bodies map[string]string
	Err    error

	mu      sync.Mutex
	queries []string
}

func (m *Mail) UnreadCount(context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	n := 0
	for _, e := range m.Emails {
		if e.Unread {
			n++
		}
	}
	return n, nil
}

func (m *Mail) ListMessages(_ context.Context, query string, max int) ([]handlers.Email, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []handlers.Email
	for _, e := range m.Emails {
		if strings.Contains(query, "is:unread") && !e.Unread {
			continue
		}
		out = append(out, e)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}

func (m *Mail) Message(_ context.Context, id string) (*handlers.Email, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	for _, e := range m.Emails {
		if e.ID == id {
			e.Body = m.Bodies[id]
			return &e, nil
		}
	}
	return nil, errs.NotFound("fakes.message", id)
}

func (m *Mail) Thread(_ context.Context, threadID string) ([]handlers.Email, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []handlers.Email
	for _, e := range m.Emails {
		if e.ThreadID == threadID {
			e.Body = m.Bodies[e.ID]
			out = append(out, e)
		}
	}
	return out, nil
}

// Queries returns the search queries seen by ListMessages.
func (m *Mail) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// Weather is a canned handlers.Weather. Unknown places are errs.KindNotFound.
type Weather struct {
	Places     map[string]handlers.Place
	Conditions handlers.Conditions
	Err        error

	mu           sync.Mutex
	currentCalls int
}

func (w *Weather) Geocode(_ context.Context, query string) (*handlers.Place, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	p, ok := w.Places[strings.ToLower(query)]
	if !ok {
		return nil, errs.NotFound("fakes.geocode", query)
	}
	return &p, nil
}

func (w *Weather) Current(_ context.Context, _, _ float64) (*handlers.Conditions, error) {
	w.mu.Lock()
	w.currentCalls++
	w.mu.Unlock()
	if w.Err != nil {
		return nil, w.Err
	}
	c := w.Conditions
	return &c, nil
}

// CurrentCalls returns how many times conditions were fetched.
func (w *Weather) CurrentCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentCalls
}

// Locator returns a fixed place.
type Locator struct {
	Place handlers.Place
	Err   error
}

func (l *Locator) Locate(context.Context) (*handlers.Place, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	p := l.Place
	return &p, nil
}

// Restaurants records queries and returns a canned reply.
type Restaurants struct {
	Reply handlers.RestaurantReply
	Err   error

	mu      sync.Mutex
	queries []handlers.RestaurantQuery
}

func (r *Restaurants) Search(_ context.Context, q handlers.RestaurantQuery) (*handlers.RestaurantReply, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	reply := r.Reply
	return &reply, nil
}

// Queries returns the searches made so far.
func (r *Restaurants) Queries() []handlers.RestaurantQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]handlers.RestaurantQuery(nil), r.queries...)
}

// News returns canned articles and records topics.
type News struct {
	Articles []handlers.Article
	Err      error

	mu     sync.Mutex
	topics []string
}

func (n *News) Headlines(_ context.Context, topic string) ([]handlers.Article, error) {
	n.mu.Lock()
	n.topics = append(n.topics, topic)
	n.mu.Unlock()
	if n.Err != nil {
		return nil, n.Err
	}
	return append([]handlers.Article(nil), n.Articles...), nil
}

// Topics returns the requested topics.
func (n *News) Topics() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.topics...)
}

// Search returns canned web results.
type Search struct {
	Results []handlers.SearchResult
	Err     error

	mu    sync.Mutex
	calls int
}

func (s *Search) Search(_ context.Context, _ string, count int) ([]handlers.SearchResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := s.Results
	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out, nil
}

// Calls returns how many searches ran.
func (s *Search) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var (
	_ handlers.Calendar    = (*Calendar)(nil)
	_ handlers.Mail        = (*Mail)(nil)
	_ handlers.Weather     = (*Weather)(nil)
	_ handlers.Locator     = (*Locator)(nil)
	_ handlers.Restaurants = (*Restaurants)(nil)
	_ handlers.News        = (*News)(nil)
	_ handlers.WebSearch   = (*Search)(nil)
)
