package entities

import "time"

// InboundMessage is one text message received from a client channel.
type InboundMessage struct {
	ID          string
	From        string // client id, the sender phone number
	ContactName string
	Content     string
	MediaType   string
	Platform    string // "whatsapp", "webhook", "cli"
	ReceivedAt  time.Time
}

// Reply is the outcome of the response pipeline for one inbound message.
type Reply struct {
	Text      string
	Strategy  string // generative, template, static or handoff
	Escalated bool
	Reason    string
	Analysis  IntentAnalysis
}
