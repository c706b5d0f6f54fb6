package store

import (
	"log"
	"sync"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Archive persists transcripts beyond the process lifetime.
type Archive interface {
	Load(sessionID string) ([]Message, error)
	Save(sessionID string, msgs []Message) error
}

type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]Message
	maxMessages int
	pendingTTL  time.Duration
	archive     Archive
	now         func() time.Time
	// Last listed expenses for resolving an expense by title
	lastBySession map[string]LastExpensesCache
	// Pending intent with partially filled slots
	pendingBySession map[string]PendingIntent
}

// NewMemoryStore keeps at most maxMessages per session; zero keeps everything.
func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		sessions:         make(map[string][]Message),
		maxMessages:      maxMessages,
		pendingTTL:       defaultPendingTTL,
		now:              time.Now,
		lastBySession:    make(map[string]LastExpensesCache),
		pendingBySession: make(map[string]PendingIntent),
	}
}

// WithArchive mirrors every transcript change into a and hydrates unknown sessions from it.
func (m *MemoryStore) WithArchive(a Archive) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archive = a
	return m
}

// WithPendingTTL overrides how long pending intents and listing caches stay valid.
func (m *MemoryStore) WithPendingTTL(ttl time.Duration) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl > 0 {
		m.pendingTTL = ttl
	}
	return m
}

func (m *MemoryStore) Append(sessionID string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hydrateLocked(sessionID)
	m.sessions[sessionID] = append(m.sessions[sessionID], msg)
	m.trimLocked(sessionID)
	m.persistLocked(sessionID)
}

func (m *MemoryStore) Get(sessionID string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hydrateLocked(sessionID)
	msgs := m.sessions[sessionID]
	copyMsgs := make([]Message, len(msgs))
	copy(copyMsgs, msgs)
	return copyMsgs
}

func (m *MemoryStore) Set(sessionID string, msgs []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionID] = append([]Message(nil), msgs...)
	m.trimLocked(sessionID)
	m.persistLocked(sessionID)
}

func (m *MemoryStore) trimLocked(sessionID string) {
	if m.maxMessages <= 0 {
		return
	}
	msgs := m.sessions[sessionID]
	if len(msgs) > m.maxMessages {
		m.sessions[sessionID] = msgs[len(msgs)-m.maxMessages:]
	}
}

func (m *MemoryStore) hydrateLocked(sessionID string) {
	if m.archive == nil {
		return
	}
	if _, ok := m.sessions[sessionID]; ok {
		return
	}
	msgs, err := m.archive.Load(sessionID)
	if err != nil {
		log.Printf("[session] archive load %s: %v", sessionID, err)
		return
	}
	m.sessions[sessionID] = msgs
	m.trimLocked(sessionID)
}

func (m *MemoryStore) persistLocked(sessionID string) {
	if m.archive == nil {
		return
	}
	if err := m.archive.Save(sessionID, m.sessions[sessionID]); err != nil {
		log.Printf("[session] archive save %s: %v", sessionID, err)
	}
}

const defaultPendingTTL = 7 * time.Minute

// ExpenseRef holds just enough to resolve an expense id from a title
type ExpenseRef struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Amount string `json:"amount"`
}

type LastExpensesCache struct {
	Expenses  []ExpenseRef
	UpdatedAt time.Time
}

type PendingIntent struct {
	Type      string
	Args      map[string]any
	UpdatedAt time.Time
}

// SetLastExpenses caches the most recent listing for a session
func (m *MemoryStore) SetLastExpenses(sessionID string, refs []ExpenseRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBySession[sessionID] = LastExpensesCache{Expenses: append([]ExpenseRef(nil), refs...), UpdatedAt: m.now()}
}

// GetLastExpenses returns the cached listing if within TTL.
func (m *MemoryStore) GetLastExpenses(sessionID string) ([]ExpenseRef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cache, ok := m.lastBySession[sessionID]
	if !ok {
		return nil, false
	}
	if m.now().Sub(cache.UpdatedAt) > m.pendingTTL {
		delete(m.lastBySession, sessionID)
		return nil, false
	}
	out := append([]ExpenseRef(nil), cache.Expenses...)
	return out, true
}

// ClearLastExpenses drops the cached listing for the session.
func (m *MemoryStore) ClearLastExpenses(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastBySession, sessionID)
}

// SetPendingIntent stores/updates a pending intent with args and timestamp.
func (m *MemoryStore) SetPendingIntent(sessionID, typ string, args map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copyArgs := make(map[string]any, len(args))
	for k, v := range args {
		copyArgs[k] = v
	}
	m.pendingBySession[sessionID] = PendingIntent{Type: typ, Args: copyArgs, UpdatedAt: m.now()}
}

// GetPendingIntent returns the pending intent if within TTL.
func (m *MemoryStore) GetPendingIntent(sessionID string) (string, map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pendingBySession[sessionID]
	if !ok {
		return "", nil, false
	}
	if m.now().Sub(p.UpdatedAt) > m.pendingTTL {
		delete(m.pendingBySession, sessionID)
		return "", nil, false
	}
	args := make(map[string]any, len(p.Args))
	for k, v := range p.Args {
		args[k] = v
	}
	return p.Type, args, true
}

// ClearPendingIntent removes any pending intent for the session.
func (m *MemoryStore) ClearPendingIntent(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingBySession, sessionID)
}
