package handlers

import (
	"context"
	"time"

	"github.com/hrygo/manas/store"
)

// TaskStore persists the user's to-do list.
type TaskStore interface {
	CreateTask(ctx context.Context, create *store.Task) (*store.Task, error)
	ListTasks(ctx context.Context, find *store.FindTask) ([]*store.Task, error)
	UpdateTask(ctx context.Context, update *store.UpdateTask) (*store.Task, error)
	DeleteTask(ctx context.Context, delete *store.DeleteTask) error
}

// MemoryStore persists facts the user asked to be remembered.
type MemoryStore interface {
	CreateMemory(ctx context.Context, create *store.Memory) (*store.Memory, error)
	ListMemories(ctx context.Context, find *store.FindMemory) ([]*store.Memory, error)
	SearchMemories(ctx context.Context, userID, query string, limit int) ([]*store.Memory, error)
	DeleteMemory(ctx context.Context, delete *store.DeleteMemory) (int, error)
}

// Continuations keeps opaque per-provider conversation handles.
type Continuations interface {
	ContinuationToken(userID, provider string) string
	SetContinuationToken(userID, provider, token string)
}

// Event is a calendar entry.
type Event struct {
	ID       string    `json:"id"`
	Summary  string    `json:"summary"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"all_day,omitempty"`
	Location string    `json:"location,omitempty"`
}

// EventPatch is a partial event update. Nil fields are left unchanged.
type EventPatch struct {
	Summary *string
	Start   *time.Time
	End     *time.Time
}

// Calendar reads and edits the user's primary calendar.
type Calendar interface {
	ListEvents(ctx context.Context, start, end time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, summary string, start, end time.Time) (*Event, error)
	UpdateEvent(ctx context.Context, id string, patch EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Email is a mailbox message. Body is only populated by Mail.Message.
type Email struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	Snippet  string `json:"snippet"`
	Body     string `json:"body,omitempty"`
	Unread   bool   `json:"is_unread"`
}

// Mail reads the user's mailbox. Queries use Gmail search syntax.
type Mail interface {
	UnreadCount(ctx context.Context) (int, error)
	ListMessages(ctx context.Context, query string, max int) ([]Email, error)
	Message(ctx context.Context, id string) (*Email, error)
	Thread(ctx context.Context, threadID string) ([]Email, error)
}

// Place is a named coordinate.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Conditions is a current-weather observation in imperial units.
type Conditions struct {
	TemperatureF float64 `json:"temperature_f"`
	Condition    string  `json:"condition"`
	Humidity     int     `json:"humidity"`
	WindMPH      float64 `json:"wind_mph"`
}

// Weather geocodes places and reports current conditions.
// Geocode returns an errs.KindNotFound error when nothing matches.
type Weather interface {
	Geocode(ctx context.Context, query string) (*Place, error)
	Current(ctx context.Context, latitude, longitude float64) (*Conditions, error)
}

// Locator approximates the caller's position (for example by IP address).
type Locator interface {
	Locate(ctx context.Context) (*Place, error)
}

// Business is a restaurant search hit.
type Business struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Rating      float64  `json:"rating,omitempty"`
	ReviewCount int      `json:"review_count"`
	Price       string   `json:"price,omitempty"`
	Distance    string   `json:"distance,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	URL         string   `json:"url,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Address     string   `json:"address,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// RestaurantQuery is one conversational restaurant search.
type RestaurantQuery struct {
	Query     string
	Latitude  *float64
	Longitude *float64
	// ChatID continues a previous conversation with the provider.
	ChatID string
}

// RestaurantReply is the provider's answer.
type RestaurantReply struct {
	Text       string
	ChatID     string
	Businesses []Business
}

// Restaurants searches for places to eat.
type Restaurants interface {
	Search(ctx context.Context, query RestaurantQuery) (*RestaurantReply, error)
}

// Article is a news story.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"thumbnail,omitempty"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"timestamp"`
}

// News returns recent articles for a topic. The topic "top headlines" means general news.
type News interface {
	Headlines(ctx context.Context, topic string) ([]Article, error)
}

// SearchResult is a web search hit.
type SearchResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// WebSearch queries the web for grounding context.
type WebSearch interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}
