package negotiation

import (
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned when appending to a ledger whose session has not
// been initialised or has been cleared.
var ErrNoSession = errors.New("negotiation: session not initialised")

// Ledger is the append-only, session-scoped store of exchanged messages.
// One ledger belongs to exactly one negotiation run; construction and
// teardown follow the run's lifetime, so no cross-run locking is needed.
// The internal mutex only guards against a streaming reader racing the
// engine goroutine.
type Ledger struct {
	mu        sync.RWMutex
	sessionID string
	createdAt time.Time
	nextID    int
	messages  []Message
}

// NewLedger creates a ledger bound to the given session id.
func NewLedger(sessionID string) *Ledger {
	return &Ledger{
		sessionID: sessionID,
		createdAt: time.Now(),
		nextID:    1,
	}
}

// SessionID returns the session this ledger belongs to.
func (l *Ledger) SessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionID
}

// Append assigns the next id, stamps the current time and stores the
// message. Messages are immutable once appended.
func (l *Ledger) Append(source Source, typ MessageType, reasoning, payload string) (Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessionID == "" {
		return Message{}, ErrNoSession
	}
	msg := Message{
		ID:        l.nextID,
		Source:    source,
		Type:      typ,
		Reasoning: reasoning,
		Payload:   payload,
		Timestamp: time.Now(),
		SessionID: l.sessionID,
	}
	l.nextID++
	l.messages = append(l.messages, msg)
	return msg, nil
}

// Filter returns messages matching the given source and type, preserving
// ledger order. An empty source or type matches everything.
func (l *Ledger) Filter(source Source, typ MessageType) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Message
	for _, m := range l.messages {
		if source != "" && m.Source != source {
			continue
		}
		if typ != "" && m.Type != typ {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Messages returns a copy of every message in append order.
func (l *Ledger) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of stored messages.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Clear drops all messages and detaches the session. The ledger rejects
// appends afterwards.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = ""
	l.messages = nil
	l.nextID = 1
}

// Summary aggregates per-source and per-type counts for a session.
type Summary struct {
	SessionID string              `json:"session_id"`
	CreatedAt time.Time           `json:"created_at"`
	Total     int                 `json:"total"`
	BySource  map[Source]int      `json:"by_source"`
	ByType    map[MessageType]int `json:"by_type"`
}

// Summary returns message counts grouped by source and type.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := Summary{
		SessionID: l.sessionID,
		CreatedAt: l.createdAt,
		Total:     len(l.messages),
		BySource:  make(map[Source]int),
		ByType:    make(map[MessageType]int),
	}
	for _, m := range l.messages {
		s.BySource[m.Source]++
		s.ByType[m.Type]++
	}
	return s
}
