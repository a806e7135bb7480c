package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/store"
)

type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*store.UserProfile
	loads    int
	failNext bool
}

func newMemProfiles() *memProfiles {
	return &memProfiles{profiles: make(map[string]*store.UserProfile)}
}

func (m *memProfiles) GetOrCreateUserProfile(_ context.Context, userID string) (*store.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	p, ok := m.profiles[userID]
	if !ok {
		p = &store.UserProfile{UserID: userID}
		m.profiles[userID] = p
	}
	return p.Clone(), nil
}

func (m *memProfiles) UpdateUserProfile(_ context.Context, update *store.UpdateUserProfile) (*store.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return nil, errors.New("db down")
	}
	p, ok := m.profiles[update.UserID]
	if !ok {
		p = &store.UserProfile{UserID: update.UserID}
		m.profiles[update.UserID] = p
	}
	update.Apply(p)
	return p.Clone(), nil
}

func TestHistory_FIFOEviction(t *testing.T) {
	s := NewStore(nil)

	for i := 0; i < 20; i++ {
		s.Append("u1", UserTurn(fmt.Sprintf("Message %d", i)), AssistantTurn(fmt.Sprintf("Response %d", i)))
	}

	h := s.History("u1")
	require.Len(t, h, MaxHistory)
	assert.Equal(t, AssistantTurn("Response 19"), h[len(h)-1])
	assert.Equal(t, UserTurn("Message 15"), h[0])
}

func TestHistory_IsCopy(t *testing.T) {
	s := NewStore(nil)
	s.Append("u1", UserTurn("hello"))

	h := s.History("u1")
	h[0].Text = "mutated"

	assert.Equal(t, "hello", s.History("u1")[0].Text)
	assert.Empty(t, s.History("u2"))
}

func TestProfile_CachedAndCopied(t *testing.T) {
	ctx := context.Background()
	backing := newMemProfiles()
	s := NewStore(backing)

	p, err := s.Profile(ctx, "u1")
	require.NoError(t, err)
	p.Name = "mutated"

	p2, err := s.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, p2.Name)
	assert.Equal(t, 1, backing.loads, "second read hits the cache")

	name := "Ravi"
	updated, err := s.UpdateProfile(ctx, &store.UpdateUserProfile{UserID: "u1", Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ravi", updated.Name)

	p3, err := s.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ravi", p3.Name)
	assert.Equal(t, 1, backing.loads)

	s.InvalidateProfile("u1")
	_, err = s.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.loads)
}

func TestProfile_UpdateFailureInvalidates(t *testing.T) {
	ctx := context.Background()
	backing := newMemProfiles()
	s := NewStore(backing)

	_, err := s.Profile(ctx, "u1")
	require.NoError(t, err)

	backing.failNext = true
	name := "x"
	_, err = s.UpdateProfile(ctx, &store.UpdateUserProfile{UserID: "u1", Name: &name})
	require.Error(t, err)

	_, err = s.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, backing.loads)
}

func TestProfile_NoBackingStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil)

	diet := "vegan"
	_, err := s.UpdateProfile(ctx, &store.UpdateUserProfile{UserID: "u1", DietaryPreference: &diet})
	require.NoError(t, err)

	p, err := s.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "vegan", p.DietaryPreference)
}

func TestContinuationToken(t *testing.T) {
	s := NewStore(nil)

	assert.Empty(t, s.ContinuationToken("u1", "yelp"))
	s.SetContinuationToken("u1", "yelp", "chat-123")
	assert.Equal(t, "chat-123", s.ContinuationToken("u1", "yelp"))
	assert.Empty(t, s.ContinuationToken("u2", "yelp"))

	s.SetContinuationToken("u1", "yelp", "")
	assert.Empty(t, s.ContinuationToken("u1", "yelp"))
}

func TestAcquire_SerializesTurns(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	release, err := s.Acquire(ctx, "u1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := s.Acquire(ctx, "u1")
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second turn acquired while first was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	other, err := s.Acquire(ctx, "u2")
	require.NoError(t, err, "other users are not blocked")
	other()

	release()
	release() // idempotent

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second turn never acquired")
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	s := NewStore(nil)

	release, err := s.Acquire(context.Background(), "u1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHistoryBlock(t *testing.T) {
	turns := []Turn{
		UserTurn("one"), AssistantTurn("two"),
		UserTurn("three"), AssistantTurn("four"),
		UserTurn("five"),
	}

	assert.Equal(t, "Conversation History:\nManas: two\nUser: three\nManas: four\nUser: five\n", HistoryBlock(turns, 4))
	assert.Empty(t, HistoryBlock(nil, 4))
}
