package infrastructure

import (
	"sync"
)

// SessionManager tracks which clients have a message being handled. It
// never blocks: ordering of one client's exchanges is kept by the context
// store tickets, so a slow backend call does not hold up the next message.
type SessionManager struct {
	sessions map[string]int
	mu       sync.Mutex
}

func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]int),
	}
}

// Enter marks one message of clientID as in flight and returns the func
// that marks it done.
func (sm *SessionManager) Enter(clientID string) func() {
	sm.mu.Lock()
	sm.sessions[clientID]++
	sm.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if sm.sessions[clientID]--; sm.sessions[clientID] <= 0 {
				delete(sm.sessions, clientID)
			}
		})
	}
}

// Pending returns how many clients currently have a message in flight.
func (sm *SessionManager) Pending() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Messages returns how many messages are in flight across all clients.
func (sm *SessionManager) Messages() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	n := 0
	for _, c := range sm.sessions {
		n += c
	}
	return n
}
