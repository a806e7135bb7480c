// Package session keeps per-user conversation state in process memory.
//
// A session holds the bounded turn history, a cached copy of the user's
// profile and opaque continuation tokens for stateful providers. Sessions
// are created on first use and live for the lifetime of the process.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hrygo/manas/store"
)

// MaxHistory is the number of turns retained per user.
const MaxHistory = 10

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation.
type Turn struct {
	Role Role
	Text string
}

// UserTurn creates a user turn.
func UserTurn(text string) Turn { return Turn{Role: RoleUser, Text: text} }

// AssistantTurn creates an assistant turn.
func AssistantTurn(text string) Turn { return Turn{Role: RoleAssistant, Text: text} }

// ProfileStore persists user profiles.
type ProfileStore interface {
	GetOrCreateUserProfile(ctx context.Context, userID string) (*store.UserProfile, error)
	UpdateUserProfile(ctx context.Context, update *store.UpdateUserProfile) (*store.UserProfile, error)
}

type session struct {
	// turn is a one-slot semaphore held for the duration of a turn.
	turn chan struct{}

	mu      sync.Mutex
	history []Turn
	profile *store.UserProfile
	tokens  map[string]string
}

// Store is the repository of sessions.
type Store struct {
	profiles ProfileStore

	mu       sync.Mutex
	sessions map[string]*session
}

// NewStore creates a session store backed by profiles. A nil profiles store
// yields empty profiles that are never persisted.
func NewStore(profiles ProfileStore) *Store {
	return &Store{
		profiles: profiles,
		sessions: make(map[string]*session),
	}
}

func (s *Store) get(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{
			turn:   make(chan struct{}, 1),
			tokens: make(map[string]string),
		}
		s.sessions[userID] = sess
	}
	return sess
}

// Acquire blocks until no other turn of userID is in flight.
// The returned release func must be called exactly once.
func (s *Store) Acquire(ctx context.Context, userID string) (func(), error) {
	sess := s.get(userID)
	select {
	case sess.turn <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-sess.turn }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// History returns a copy of the user's turns, oldest first.
func (s *Store) History(userID string) []Turn {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]Turn(nil), sess.history...)
}

// Append adds turns to the history, evicting the oldest beyond MaxHistory.
func (s *Store) Append(userID string, turns ...Turn) {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.history = append(sess.history, turns...)
	if over := len(sess.history) - MaxHistory; over > 0 {
		sess.history = append([]Turn(nil), sess.history[over:]...)
	}
}

// Profile returns a copy of the user's profile, loading it on first use.
func (s *Store) Profile(ctx context.Context, userID string) (*store.UserProfile, error) {
	sess := s.get(userID)
	sess.mu.Lock()
	cached := sess.profile
	sess.mu.Unlock()
	if cached != nil {
		return cached.Clone(), nil
	}

	if s.profiles == nil {
		return &store.UserProfile{UserID: userID}, nil
	}
	p, err := s.profiles.GetOrCreateUserProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	sess.mu.Lock()
	if sess.profile == nil {
		sess.profile = p
	}
	p = sess.profile
	sess.mu.Unlock()
	return p.Clone(), nil
}

// UpdateProfile persists a partial profile update and refreshes the cached copy.
func (s *Store) UpdateProfile(ctx context.Context, update *store.UpdateUserProfile) (*store.UserProfile, error) {
	sess := s.get(update.UserID)
	if s.profiles == nil {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.profile == nil {
			sess.profile = &store.UserProfile{UserID: update.UserID}
		}
		update.Apply(sess.profile)
		return sess.profile.Clone(), nil
	}

	p, err := s.profiles.UpdateUserProfile(ctx, update)
	if err != nil {
		s.InvalidateProfile(update.UserID)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	sess.mu.Lock()
	sess.profile = p
	sess.mu.Unlock()
	slog.Debug("profile updated", "user_id", update.UserID)
	return p.Clone(), nil
}

// InvalidateProfile drops the cached profile; the next Profile call reloads it.
func (s *Store) InvalidateProfile(userID string) {
	sess := s.get(userID)
	sess.mu.Lock()
	sess.profile = nil
	sess.mu.Unlock()
}

// ContinuationToken returns the provider's opaque token for the user, or "".
func (s *Store) ContinuationToken(userID, provider string) string {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.tokens[provider]
}

// SetContinuationToken records the provider's token. An empty token clears it.
func (s *Store) SetContinuationToken(userID, provider, token string) {
	sess := s.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if token == "" {
		delete(sess.tokens, provider)
		return
	}
	sess.tokens[provider] = token
}

// HistoryBlock renders the last n turns for prompt context.
// It returns "" for an empty history.
func HistoryBlock(turns []Turn, n int) string {
	if len(turns) == 0 || n <= 0 {
		return ""
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}

	var sb strings.Builder
	sb.WriteString("Conversation History:\n")
	for _, t := range turns {
		if t.Role == RoleUser {
			sb.WriteString("User: ")
		} else {
			sb.WriteString("Manas: ")
		}
		sb.WriteString(t.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}
