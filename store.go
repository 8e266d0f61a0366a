package versequiz

import (
	"context"
	"sync"
)

// BookUpdate is a set of changes to one book applied as a single unit
type BookUpdate struct {
	Book     string
	Enabled  *bool
	Rarities map[int]Rarity
}

// ClassificationStore persists per-user book and chapter classifications. Reads must
// reflect earlier writes made through the same store.
type ClassificationStore interface {
	GetAll(ctx context.Context, userID string) (*Classifications, error)
	SetBookEnabled(ctx context.Context, userID, book string, enabled bool) error
	SetChapterRarity(ctx context.Context, userID, book string, chapter int, rarity Rarity) error
	// ApplyBookUpdate writes every change in upd or none of them
	ApplyBookUpdate(ctx context.Context, userID string, upd BookUpdate) error
	// Seed creates first-use rows for a user: every corpus book disabled except seedBook
	Seed(ctx context.Context, userID string, corpus *Corpus, seedBook string) error
	HasUser(ctx context.Context, userID string) (bool, error)
}

// LocalScoreStore persists scores on this side of the network
type LocalScoreStore interface {
	GetScores(ctx context.Context, userID string) (overall, session int, err error)
	SetOverallScore(ctx context.Context, userID string, score int) error
	SetSessionScore(ctx context.Context, userID string, score int) error
	// SetScores writes both scores or neither
	SetScores(ctx context.Context, userID string, overall, session int) error
}

// DefaultClassifications is the state used when nothing could be loaded:
// all books disabled except the seed book, all chapters common.
func DefaultClassifications(corpus *Corpus, seedBook string) *Classifications {
	cls := NewClassifications()
	for _, name := range corpus.BookNames() {
		cls.Books[name] = name == seedBook
	}
	return cls
}

type memoryUser struct {
	cls     *Classifications
	overall int
	session int
}

// MemoryStore keeps everything in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*memoryUser
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*memoryUser)}
}

func (m *MemoryStore) user(userID string) *memoryUser {
	u, ok := m.users[userID]
	if !ok {
		u = &memoryUser{cls: NewClassifications()}
		m.users[userID] = u
	}
	return u
}

func (m *MemoryStore) GetAll(ctx context.Context, userID string) (*Classifications, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return NewClassifications(), nil
	}
	return u.cls.Clone(), nil
}

func (m *MemoryStore) SetBookEnabled(ctx context.Context, userID, book string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).cls.Books[book] = enabled
	return nil
}

func (m *MemoryStore) SetChapterRarity(ctx context.Context, userID, book string, chapter int, rarity Rarity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).cls.SetRarity(book, chapter, rarity)
	return nil
}

func (m *MemoryStore) ApplyBookUpdate(ctx context.Context, userID string, upd BookUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	for n, r := range upd.Rarities {
		u.cls.SetRarity(upd.Book, n, r)
	}
	if upd.Enabled != nil {
		u.cls.Books[upd.Book] = *upd.Enabled
	}
	return nil
}

func (m *MemoryStore) Seed(ctx context.Context, userID string, corpus *Corpus, seedBook string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	for _, name := range corpus.BookNames() {
		if _, ok := u.cls.Books[name]; !ok {
			u.cls.Books[name] = name == seedBook
		}
	}
	return nil
}

func (m *MemoryStore) HasUser(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	return ok && len(u.cls.Books) > 0, nil
}

func (m *MemoryStore) GetScores(ctx context.Context, userID string) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, 0, nil
	}
	return u.overall, u.session, nil
}

func (m *MemoryStore) SetOverallScore(ctx context.Context, userID string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).overall = score
	return nil
}

func (m *MemoryStore) SetSessionScore(ctx context.Context, userID string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(userID).session = score
	return nil
}

func (m *MemoryStore) SetScores(ctx context.Context, userID string, overall, session int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.user(userID)
	u.overall = overall
	u.session = session
	return nil
}
