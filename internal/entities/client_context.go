package entities

import "time"

// Exchange is one message/response pair kept in a client's rolling history.
type Exchange struct {
	Message  string    `json:"message"`
	Response string    `json:"response"`
	At       time.Time `json:"at"`
	Seq      uint64    `json:"-"`
}

// ClientContext is the per-client conversational memory.
type ClientContext struct {
	ClientID          string     `json:"client_id"`
	Name              string     `json:"name"`
	PreferredLanguage string     `json:"preferred_language,omitempty"`
	FirstContact      bool       `json:"first_contact"`
	InteractionCount  int        `json:"interaction_count"`
	LastInteraction   time.Time  `json:"last_interaction"`
	Notes             string     `json:"notes"`
	History           []Exchange `json:"history"`
	Escalated         bool       `json:"escalated"`
	EscalationReason  string     `json:"escalation_reason,omitempty"`
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (c ClientContext) Clone() ClientContext {
	out := c
	if c.History != nil {
		out.History = make([]Exchange, len(c.History))
		copy(out.History, c.History)
	}
	return out
}
