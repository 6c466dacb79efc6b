package usecases

import (
	"strconv"
	"sync"
	"time"

	"luma_assistant/internal/entities"
)

// DigestSnapshot is the activity seen since the last reset.
type DigestSnapshot struct {
	Messages       int       `json:"messages"`
	OrderInquiries int       `json:"order_inquiries"`
	Escalations    int       `json:"escalations"`
	Alerts         int       `json:"alerts"`
	Negative       int       `json:"negative"`
	Since          time.Time `json:"since"`
}

// BusinessDigest accumulates the daily counters used by the operator
// briefings.
type BusinessDigest struct {
	mu   sync.Mutex
	snap DigestSnapshot
	now  func() time.Time
}

func NewBusinessDigest() *BusinessDigest {
	d := &BusinessDigest{now: time.Now}
	d.snap.Since = d.now()
	return d
}

func (d *BusinessDigest) ObserveReply(reply entities.Reply) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snap.Messages++
	if reply.Analysis.Intent == entities.IntentOrderInquiry {
		d.snap.OrderInquiries++
	}
	if reply.Escalated {
		d.snap.Escalations++
	}
	if reply.Analysis.Sentiment == entities.SentimentNegative {
		d.snap.Negative++
	}
}

func (d *BusinessDigest) ObserveAlert() {
	d.mu.Lock()
	d.snap.Alerts++
	d.mu.Unlock()
}

func (d *BusinessDigest) Snapshot() DigestSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snap
}

// Reset clears the counters and returns what they held.
func (d *BusinessDigest) Reset() DigestSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.snap
	d.snap = DigestSnapshot{Since: d.now()}
	return prev
}

// BriefingSlots fills the morning_briefing body. Zero counters render as
// "0" so the template drops the line.
func (d *BusinessDigest) BriefingSlots(lang string, pendingWhatsApp int) map[string]string {
	s := d.Snapshot()
	return map[string]string{
		"emails":   strconv.Itoa(s.Alerts),
		"orders":   strconv.Itoa(s.OrderInquiries),
		"whatsapp": strconv.Itoa(pendingWhatsApp),
		"insight":  insightFor(lang, s),
	}
}

var insights = map[string][2]string{
	"fr": {
		"plusieurs clients mécontents, un petit geste commercial ?",
		"beaucoup de questions sur les commandes, vérifie les délais de livraison.",
	},
	"en": {
		"several unhappy clients, maybe offer a small discount?",
		"lots of order questions, check the delivery times.",
	},
}

func insightFor(lang string, s DigestSnapshot) string {
	texts, ok := insights[lang]
	if !ok {
		texts = insights["fr"]
	}
	switch {
	case s.Messages == 0:
		return ""
	case s.Negative*3 >= s.Messages:
		return texts[0]
	case s.OrderInquiries*2 >= s.Messages:
		return texts[1]
	}
	return ""
}
