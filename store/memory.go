package store

// Memory sources.
const (
	MemorySourceExplicit = "explicit"
	MemorySourceLearned  = "learned"
)

// Memory is a fact the user asked the assistant to remember.
type Memory struct {
	ID        string
	UserID    string
	Content   string
	Source    string
	CreatedTs int64
}

// FindMemory specifies the conditions for finding memories.
// Results are ordered newest first.
type FindMemory struct {
	ID     *string
	UserID *string
	Limit  int
}

// DeleteMemory specifies memories to delete. A nil ID deletes every memory of the user.
type DeleteMemory struct {
	ID     *string
	UserID string
}
