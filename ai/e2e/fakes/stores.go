package fakes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hrygo/manas/ai/handlers"
	"github.com/hrygo/manas/store"
)

// TaskStore is an in-memory handlers.TaskStore.
type TaskStore struct {
	mu    sync.Mutex
	tasks []*store.Task
	seq   int
	// Err fails every call when set.
	Err error
}

// NewTaskStore creates a TaskStore seeded with tasks.
func NewTaskStore(tasks ...*store.Task) *TaskStore {
	s := &TaskStore{}
	for _, t := range tasks {
		s.add(t)
	}
	return s
}

func (s *TaskStore) add(t *store.Task) *store.Task {
	c := *t
	if c.ID == "" {
		s.seq++
		c.ID = fmt.Sprintf("task-%d", s.seq)
	}
	if c.Status == "" {
		c.Status = store.TaskPending
	}
	s.tasks = append(s.tasks, &c)
	out := c
	return &out
}

func (s *TaskStore) CreateTask(_ context.Context, create *store.Task) (*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.add(create), nil
}

func (s *TaskStore) ListTasks(_ context.Context, find *store.FindTask) ([]*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*store.Task
	for _, t := range s.tasks {
		if find.ID != nil && t.ID != *find.ID {
			continue
		}
		if find.UserID != nil && t.UserID != *find.UserID {
			continue
		}
		if find.Status != nil && t.Status != *find.Status {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	return out, nil
}

func (s *TaskStore) UpdateTask(_ context.Context, update *store.UpdateTask) (*store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, t := range s.tasks {
		if t.ID != update.ID || t.UserID != update.UserID {
			continue
		}
		if update.Title != nil {
			t.Title = *update.Title
		}
		if update.Status != nil {
			t.Status = *update.Status
		}
		if update.Priority != nil {
			t.Priority = *update.Priority
		}
		if update.DueDate != nil {
			due := *update.DueDate
			t.DueDate = &due
		}
		c := *t
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (s *TaskStore) DeleteTask(_ context.Context, del *store.DeleteTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i, t := range s.tasks {
		if t.ID == del.ID && t.UserID == del.UserID {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

// Tasks returns a snapshot of every stored task.
func (s *TaskStore) Tasks() []store.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = *t
	}
	return out
}

// MemoryStore is an in-memory handlers.MemoryStore.
// Search ranks by keyword overlap the same way store.Store does.
type MemoryStore struct {
	mu       sync.Mutex
	memories []*store.Memory
	seq      int
	// Err fails every call when set.
	Err error
}

// NewMemoryStore creates a MemoryStore seeded with memories, oldest first.
func NewMemoryStore(memories ...*store.Memory) *MemoryStore {
	s := &MemoryStore{}
	for _, m := range memories {
		s.add(m)
	}
	return s
}

func (s *MemoryStore) add(m *store.Memory) *store.Memory {
	c := *m
	s.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("memory-%d", s.seq)
	}
	if c.Source == "" {
		c.Source = store.MemorySourceExplicit
	}
	if c.CreatedTs == 0 {
		c.CreatedTs = int64(s.seq)
	}
	s.memories = append(s.memories, &c)
	out := c
	return &out
}

func (s *MemoryStore) CreateMemory(_ context.Context, create *store.Memory) (*store.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.add(create), nil
}

func (s *MemoryStore) list(userID string) []*store.Memory {
	var out []*store.Memory
	for i := len(s.memories) - 1; i >= 0; i-- {
		if m := s.memories[i]; m.UserID == userID {
			c := *m
			out = append(out, &c)
		}
	}
	return out
}

func (s *MemoryStore) ListMemories(_ context.Context, find *store.FindMemory) ([]*store.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	userID := ""
	if find.UserID != nil {
		userID = *find.UserID
	}
	out := s.list(userID)
	if find.ID != nil {
		var filtered []*store.Memory
		for _, m := range out {
			if m.ID == *find.ID {
				filtered = append(filtered, m)
			}
		}
		out = filtered
	}
	if find.Limit > 0 && len(out) > find.Limit {
		out = out[:find.Limit]
	}
	return out, nil
}

func (s *MemoryStore) SearchMemories(_ context.Context, userID, query string, limit int) ([]*store.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	terms := store.Keywords(query)
	type scored struct {
		memory *store.Memory
		score  int
	}
	var hits []scored
	for _, m := range s.list(userID) {
		words := map[string]bool{}
		for _, w := range store.Keywords(m.Content) {
			words[w] = true
		}
		score := 0
		for _, t := range terms {
			if words[t] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{memory: m, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*store.Memory, len(hits))
	for i, h := range hits {
		out[i] = h.memory
	}
	return out, nil
}

func (s *MemoryStore) DeleteMemory(_ context.Context, del *store.DeleteMemory) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	kept := s.memories[:0:0]
	n := 0
	for _, m := range s.memories {
		if m.UserID == del.UserID && (del.ID == nil || m.ID == *del.ID) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	s.memories = kept
	return n, nil
}

// Contents returns the stored facts of a user, oldest first.
func (s *MemoryStore) Contents(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range s.memories {
		if m.UserID == userID {
			out = append(out, m.Content)
		}
	}
	return out
}

var (
	_ handlers.TaskStore   = (*TaskStore)(nil)
	_ handlers.MemoryStore = (*MemoryStore)(nil)
)
