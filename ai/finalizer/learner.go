package finalizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hrygo/manas/ai/core/llm"
	"github.com/hrygo/manas/ai/internal/strutil"
	"github.com/hrygo/manas/ai/metrics"
	"github.com/hrygo/manas/store"
)

const (
	DefaultLearnerQueue   = 64
	DefaultLearnerWorkers = 1

	learnTimeout      = 10 * time.Second
	learnMaxTokens    = 150
	maxLearnInterests = 3
)

// Learning outcomes, as recorded in the profile_learning metric.
const (
	LearnSuccess = "success"
	LearnFailure = "failure"
	LearnSkipped = "skipped"
	LearnDropped = "dropped"
)

// ProfileUpdater reads and merges user profiles, keeping any cached copy current.
type ProfileUpdater interface {
	Profile(ctx context.Context, userID string) (*store.UserProfile, error)
	UpdateProfile(ctx context.Context, update *store.UpdateUserProfile) (*store.UserProfile, error)
}

// LearnerConfig configures the background profile learner.
type LearnerConfig struct {
	QueueSize int // default: 64
	Workers   int // default: 1
}

type learnJob struct {
	userID    string
	utterance string
}

// Learner extracts explicit personal facts from utterances in the background.
// Enqueue never blocks; work beyond the queue capacity is dropped and counted.
type Learner struct {
	llm      llm.Service
	profiles ProfileUpdater
	metrics  *metrics.Exporter

	queue  chan learnJob
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewLearner starts the worker pool.
func NewLearner(svc llm.Service, profiles ProfileUpdater, m *metrics.Exporter, cfg LearnerConfig) *Learner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultLearnerQueue
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultLearnerWorkers
	}

	l := &Learner{
		llm:      svc,
		profiles: profiles,
		metrics:  m,
		queue:    make(chan learnJob, cfg.QueueSize),
		stopCh:   make(chan struct{}),
	}
	l.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go l.work()
	}
	return l
}

// Enqueue schedules learning from utterance. It reports false when the job was dropped.
func (l *Learner) Enqueue(userID, utterance string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return false
	}

	select {
	case l.queue <- learnJob{userID: userID, utterance: utterance}:
		return true
	default:
		slog.Warn("profile learner queue full, dropping job",
			"user_id", userID,
			"queue_size", len(l.queue),
		)
		l.metrics.RecordProfileLearning(LearnDropped)
		return false
	}
}

// Close stops accepting jobs, finishes the queued ones and waits for the workers.
func (l *Learner) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.stopCh)
	})
	l.wg.Wait()
}

func (l *Learner) work() {
	defer l.wg.Done()

	for {
		select {
		case job := <-l.queue:
			l.run(job)
		case <-l.stopCh:
			// Drain remaining jobs before shutdown
			for {
				select {
				case job := <-l.queue:
					l.run(job)
				default:
					return
				}
			}
		}
	}
}

func (l *Learner) run(job learnJob) {
	ctx, cancel := context.WithTimeout(context.Background(), learnTimeout)
	defer cancel()

	status, err := l.Learn(ctx, job.userID, job.utterance)
	if err != nil {
		slog.Warn("profile learning failed", "user_id", job.userID, "error", err)
	}
	l.metrics.RecordProfileLearning(status)
}

// extracted is the JSON shape of a profile extraction.
type extracted struct {
	Name              string   `json:"name"`
	DietaryPreference string   `json:"dietary_preference"`
	LearningLevel     string   `json:"learning_level"`
	Interests         []string `json:"interests"`
	Location          string   `json:"location"`
}

// Learn extracts profile facts from utterance and merges them into the profile.
// It returns the outcome recorded in metrics.
func (l *Learner) Learn(ctx context.Context, userID, utterance string) (string, error) {
	prompt := fmt.Sprintf(`Extract ONLY explicit personal information from this message. Return JSON or "null".

User message: "%s"

Extract ONLY if explicitly mentioned:
- name: First name or full name (only if the user introduces themselves)
- dietary_preference: One of: vegetarian, vegan, pescatarian, kosher, halal, gluten-free, none
- learning_level: One of: beginner, intermediate, expert
- interests: Array of topics or hobbies mentioned (max 3)
- location: City or region if mentioned

Rules:
1. Only extract what is EXPLICITLY stated
2. Return "null" if no personal info found
3. Don't infer or assume

Examples:
"I'm Sarah" -> {"name": "Sarah"}
"I don't eat meat" -> {"dietary_preference": "vegetarian"}
"I'm vegan and love cooking" -> {"dietary_preference": "vegan", "interests": ["cooking"]}
"I live in Seattle" -> {"location": "Seattle"}
"What's the weather?" -> null

Output (JSON or null):`, utterance)

	text, _, err := l.llm.Chat(ctx, []llm.Message{llm.UserMessage(prompt)},
		llm.WithTemperature(0),
		llm.WithMaxTokens(learnMaxTokens),
	)
	if err != nil {
		return LearnFailure, err
	}
	answer := llm.CleanAnswer(text)
	if answer == "" || strings.EqualFold(answer, "null") || strings.EqualFold(answer, "none") {
		return LearnSkipped, nil
	}

	var facts extracted
	if err := llm.DecodeJSON(answer, &facts); err != nil {
		return LearnFailure, err
	}

	update := &store.UpdateUserProfile{UserID: userID}
	if v := strings.TrimSpace(facts.Name); v != "" {
		update.Name = &v
	}
	if v := NormalizeDiet(facts.DietaryPreference); v != "" {
		update.DietaryPreference = &v
	}
	if v := NormalizeLevel(facts.LearningLevel); v != "" {
		update.LearningLevel = &v
	}
	if v := strings.TrimSpace(facts.Location); v != "" {
		update.Location = &v
	}
	interests := cleanInterests(facts.Interests)
	if update.IsEmpty() && len(interests) == 0 {
		return LearnSkipped, nil
	}

	if len(interests) > 0 {
		current, err := l.profiles.Profile(ctx, userID)
		if err != nil {
			return LearnFailure, err
		}
		if merged := mergeInterests(current.Interests, interests); len(merged) != len(current.Interests) {
			update.Interests = merged
		}
	}
	if update.IsEmpty() {
		return LearnSkipped, nil
	}

	if _, err := l.profiles.UpdateProfile(ctx, update); err != nil {
		return LearnFailure, err
	}
	slog.Info("profile learned from conversation",
		"user_id", userID,
		"utterance", strutil.Truncate(utterance, 50),
	)
	return LearnSuccess, nil
}

var dietAliases = map[string]string{
	"vegetarian":      "vegetarian",
	"veggie":          "vegetarian",
	"veg":             "vegetarian",
	"vegan":           "vegan",
	"pescatarian":     "pescatarian",
	"pescetarian":     "pescatarian",
	"fish":            "pescatarian",
	"kosher":          "kosher",
	"halal":           "halal",
	"gluten-free":     "gluten-free",
	"gluten free":     "gluten-free",
	"celiac":          "gluten-free",
	"none":            "none",
	"no restrictions": "none",
}

var levelAliases = map[string]string{
	"beginner":     "beginner",
	"novice":       "beginner",
	"new":          "beginner",
	"starting":     "beginner",
	"intermediate": "intermediate",
	"mid":          "intermediate",
	"moderate":     "intermediate",
	"advanced":     "expert",
	"expert":       "expert",
	"professional": "expert",
	"pro":          "expert",
}

// NormalizeDiet maps dietary preference variants to their canonical value.
// Unknown values are returned lowercased.
func NormalizeDiet(raw string) string {
	return normalize(raw, dietAliases)
}

// NormalizeLevel maps learning level variants to beginner, intermediate or expert.
// Unknown values are returned lowercased.
func NormalizeLevel(raw string) string {
	return normalize(raw, levelAliases)
}

func normalize(raw string, aliases map[string]string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := aliases[v]; ok {
		return canonical
	}
	return v
}

func cleanInterests(raw []string) []string {
	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxLearnInterests {
			break
		}
	}
	return out
}

// mergeInterests appends new interests not already present (case-insensitive).
func mergeInterests(current, learned []string) []string {
	seen := make(map[string]bool, len(current)+len(learned))
	merged := append([]string(nil), current...)
	for _, s := range current {
		seen[strings.ToLower(s)] = true
	}
	for _, s := range learned {
		if key := strings.ToLower(s); !seen[key] {
			seen[key] = true
			merged = append(merged, s)
		}
	}
	return merged
}
