package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/manas/internal/profile"
)

// ErrNotFound is returned by drivers when an update or delete matches no row.
var ErrNotFound = errors.New("not found")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
	now     func() time.Time
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		now:     time.Now,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// Migrate prepares the underlying database.
func (s *Store) Migrate(ctx context.Context) error {
	return errors.Wrap(s.driver.Migrate(ctx), "failed to migrate store")
}

// GetOrCreateUserProfile returns the user's profile, creating an empty one on first use.
func (s *Store) GetOrCreateUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	p, err := s.driver.GetUserProfile(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get profile of user %s", userID)
	}
	if p != nil {
		return p, nil
	}

	ts := s.now().Unix()
	p, err = s.driver.UpsertUserProfile(ctx, &UserProfile{UserID: userID, CreatedTs: ts, UpdatedTs: ts})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create profile of user %s", userID)
	}
	return p, nil
}

// UpdateUserProfile merges a partial update into the stored profile and returns the result.
func (s *Store) UpdateUserProfile(ctx context.Context, update *UpdateUserProfile) (*UserProfile, error) {
	p, err := s.GetOrCreateUserProfile(ctx, update.UserID)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return p, nil
	}

	update.Apply(p)
	p.UpdatedTs = s.now().Unix()
	p, err = s.driver.UpsertUserProfile(ctx, p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update profile of user %s", update.UserID)
	}
	return p, nil
}

func (s *Store) CreateTask(ctx context.Context, create *Task) (*Task, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	if create.Status == "" {
		create.Status = TaskPending
	}
	ts := s.now().Unix()
	create.CreatedTs, create.UpdatedTs = ts, ts
	task, err := s.driver.CreateTask(ctx, create)
	return task, errors.Wrap(err, "failed to create task")
}

func (s *Store) ListTasks(ctx context.Context, find *FindTask) ([]*Task, error) {
	tasks, err := s.driver.ListTasks(ctx, find)
	return tasks, errors.Wrap(err, "failed to list tasks")
}

// ListPendingTasks returns the user's pending tasks.
func (s *Store) ListPendingTasks(ctx context.Context, userID string) ([]*Task, error) {
	status := TaskPending
	return s.ListTasks(ctx, &FindTask{UserID: &userID, Status: &status})
}

func (s *Store) UpdateTask(ctx context.Context, update *UpdateTask) (*Task, error) {
	task, err := s.driver.UpdateTask(ctx, update)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update task %s", update.ID)
	}
	return task, nil
}

func (s *Store) DeleteTask(ctx context.Context, delete *DeleteTask) error {
	return errors.Wrapf(s.driver.DeleteTask(ctx, delete), "failed to delete task %s", delete.ID)
}

func (s *Store) CreateMemory(ctx context.Context, create *Memory) (*Memory, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	if create.Source == "" {
		create.Source = MemorySourceExplicit
	}
	create.CreatedTs = s.now().Unix()
	memory, err := s.driver.CreateMemory(ctx, create)
	return memory, errors.Wrap(err, "failed to create memory")
}

func (s *Store) ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error) {
	memories, err := s.driver.ListMemories(ctx, find)
	return memories, errors.Wrap(err, "failed to list memories")
}

func (s *Store) DeleteMemory(ctx context.Context, delete *DeleteMemory) (int, error) {
	n, err := s.driver.DeleteMemory(ctx, delete)
	return n, errors.Wrap(err, "failed to delete memory")
}

// SearchMemories ranks the user's memories by keyword overlap with query.
// Memories sharing no keyword with the query are omitted.
func (s *Store) SearchMemories(ctx context.Context, userID, query string, limit int) ([]*Memory, error) {
	memories, err := s.ListMemories(ctx, &FindMemory{UserID: &userID})
	if err != nil {
		return nil, err
	}

	terms := Keywords(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type scored struct {
		memory *Memory
		score  int
	}
	var hits []scored
	for _, m := range memories {
		words := make(map[string]struct{})
		for _, w := range Keywords(m.Content) {
			words[w] = struct{}{}
		}
		score := 0
		for _, t := range terms {
			if _, ok := words[t]; ok {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{memory: m, score: score})
		}
	}

	// memories arrive newest first; stable sort keeps recency as the tie-break
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	result := make([]*Memory, len(hits))
	for i, h := range hits {
		result[i] = h.memory
	}
	return result, nil
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "i": {}, "me": {}, "my": {}, "is": {}, "are": {}, "was": {},
	"what": {}, "do": {}, "you": {}, "your": {}, "about": {}, "know": {}, "remember": {},
	"of": {}, "to": {}, "and": {}, "or": {}, "in": {}, "on": {}, "for": {}, "it": {},
	"that": {}, "this": {}, "did": {}, "tell": {}, "have": {}, "has": {}, "be": {}, "at": {},
}

// Keywords lowercases text and returns its non-stopword terms with trailing plural s removed.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSuffix(strings.Trim(f, "'"), "'s")
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		out = append(out, f)
	}
	return out
}
