package entities

type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentOrderInquiry    Intent = "order_inquiry"
	IntentProductQuestion Intent = "product_question"
	IntentUrgentSupport   Intent = "urgent_support"
	IntentComplaint       Intent = "complaint"
	IntentThanks          Intent = "thanks"
	IntentGeneral         Intent = "general"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// Topic narrows a message to the shop subject it is about, independently of intent.
type Topic string

const (
	TopicNone     Topic = ""
	TopicGreeting Topic = "greeting"
	TopicPrices   Topic = "prices"
	TopicHours    Topic = "hours"
	TopicProducts Topic = "products"
)

// IntentAnalysis is the classification of a single inbound message.
type IntentAnalysis struct {
	Language         string    `json:"language"`
	LanguageDetected bool      `json:"language_detected"`
	Intent           Intent    `json:"intent"`
	Topic            Topic     `json:"topic,omitempty"`
	Sentiment        Sentiment `json:"sentiment"`
	Urgency          Urgency   `json:"urgency"`
	BusinessHours    bool      `json:"business_hours"`
	Confidence       float64   `json:"confidence"`
	KeywordCount     int       `json:"keyword_count"`
}
