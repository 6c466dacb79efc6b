package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"luma_assistant/internal/entities"
)

const (
	DefaultHistoryLimit = 10
	maxNotesLength      = 200
	noteExcerptLength   = 50
)

// Ticket orders the exchanges of one client by receipt, so replies that
// finish out of order still land in history in the order they arrived.
type Ticket struct {
	ClientID string
	Seq      uint64
}

type clientEntry struct {
	mu      sync.Mutex
	ctx     entities.ClientContext
	nextSeq uint64
}

// ContextStore keeps per-client conversational memory in process.
// Each client has its own lock; different clients never contend.
type ContextStore struct {
	clients      map[string]*clientEntry
	mu           sync.RWMutex
	historyLimit int
	now          func() time.Time
}

func NewContextStore(historyLimit int) *ContextStore {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ContextStore{
		clients:      make(map[string]*clientEntry),
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

func (s *ContextStore) WithClock(now func() time.Time) *ContextStore {
	s.now = now
	return s
}

func (s *ContextStore) entry(clientID string) (*clientEntry, bool) {
	s.mu.RLock()
	e, ok := s.clients[clientID]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.clients[clientID]; ok {
		return e, false
	}
	e = &clientEntry{ctx: entities.ClientContext{ClientID: clientID, FirstContact: true}}
	s.clients[clientID] = e
	return e, true
}

// GetOrCreate returns the client's context, creating it on first contact.
// A later call for a known client clears the first-contact flag.
func (s *ContextStore) GetOrCreate(clientID, name string) entities.ClientContext {
	e, created := s.entry(clientID)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.touch(e, name, created)
	return e.ctx.Clone()
}

// Begin is GetOrCreate plus a receipt-order ticket for the later RecordExchange.
func (s *ContextStore) Begin(clientID, name string) (entities.ClientContext, Ticket) {
	e, created := s.entry(clientID)
	e.mu.Lock()
	defer e.mu.Unlock()
	s.touch(e, name, created)
	t := Ticket{ClientID: clientID, Seq: e.nextSeq}
	e.nextSeq++
	return e.ctx.Clone(), t
}

func (s *ContextStore) touch(e *clientEntry, name string, created bool) {
	if !created {
		e.ctx.FirstContact = false
	}
	if name != "" {
		e.ctx.Name = name
	}
}

// RecordExchange appends one message/response pair and bumps the count.
func (s *ContextStore) RecordExchange(t Ticket, message, response string) error {
	s.mu.RLock()
	e, ok := s.clients[t.ClientID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("record exchange for %s: %w", t.ClientID, ErrUnknownClient)
	}

	now := s.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	c := &e.ctx
	c.InteractionCount++
	c.LastInteraction = now

	ex := entities.Exchange{Message: message, Response: response, At: now, Seq: t.Seq}
	c.History = append(c.History, ex)
	sort.SliceStable(c.History, func(i, j int) bool { return c.History[i].Seq < c.History[j].Seq })
	if over := len(c.History) - s.historyLimit; over > 0 {
		c.History = append([]entities.Exchange(nil), c.History[over:]...)
	}

	if len(c.Notes) < maxNotesLength {
		excerpt := message
		if r := []rune(excerpt); len(r) > noteExcerptLength {
			excerpt = string(r[:noteExcerptLength])
		}
		c.Notes += fmt.Sprintf(" %s: %s...", now.Format("02/01"), excerpt)
	}
	return nil
}

func (s *ContextStore) UpdateLanguagePreference(clientID, lang string) {
	e, _ := s.entry(clientID)
	e.mu.Lock()
	e.ctx.PreferredLanguage = lang
	e.mu.Unlock()
}

func (s *ContextStore) MarkEscalated(clientID, reason string) {
	e, _ := s.entry(clientID)
	e.mu.Lock()
	e.ctx.Escalated = true
	e.ctx.EscalationReason = reason
	e.mu.Unlock()
}

// ClearEscalation marks a handed-off client as handled again. It reports
// false for unknown clients.
func (s *ContextStore) ClearEscalation(clientID string) bool {
	s.mu.RLock()
	e, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	e.ctx.Escalated = false
	e.ctx.EscalationReason = ""
	e.mu.Unlock()
	return true
}

// Get returns a snapshot without creating the client.
func (s *ContextStore) Get(clientID string) (entities.ClientContext, bool) {
	s.mu.RLock()
	e, ok := s.clients[clientID]
	s.mu.RUnlock()
	if !ok {
		return entities.ClientContext{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx.Clone(), true
}

func (s *ContextStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// CountEscalated returns how many clients are waiting for a human.
func (s *ContextStore) CountEscalated() int {
	s.mu.RLock()
	entries := make([]*clientEntry, 0, len(s.clients))
	for _, e := range s.clients {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.ctx.Escalated {
			n++
		}
		e.mu.Unlock()
	}
	return n
}
