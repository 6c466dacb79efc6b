package usecases

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	"luma_assistant/internal/entities"
)

type languagePattern struct {
	lang    string
	pattern *regexp.Regexp
}

type intentKeywords struct {
	intent   entities.Intent
	keywords []string
}

type topicKeywords struct {
	topic   entities.Topic
	pattern *regexp.Regexp
}

// wordPattern matches any of the words as a whole word. RE2's \b only knows
// ASCII, so accented words get explicit letter boundaries instead.
func wordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:[^\p{L}\p{N}]|$)`)
}

// Order matters: the first language whose pattern matches wins.
var languagePatterns = []languagePattern{
	{"en", wordPattern("hello", "hi", "hey", "what", "how", "can", "you", "help", "thanks", "price", "cost", "open", "hours", "need", "please", "the", "refund")},
	{"es", wordPattern("hola", "qué", "cómo", "puedes", "ayuda", "gracias", "precio", "cuánto", "abierto", "horas")},
	{"fr", wordPattern("bonjour", "salut", "quoi", "comment", "peux", "aide", "merci", "prix", "combien", "ouvert", "horaires")},
	{"it", wordPattern("ciao", "cosa", "come", "puoi", "aiuto", "grazie", "prezzo", "quanto", "aperto", "ore")},
	{"pt", wordPattern("olá", "oi", "que", "como", "pode", "ajuda", "obrigado", "preço", "quanto", "aberto", "horas")},
}

// Declaration order breaks ties between equally scored intents.
var intentTable = []intentKeywords{
	{entities.IntentOrderInquiry, []string{"commande", "order", "suivi", "tracking", "livraison", "delivery", "référence", "ref", "pedido", "ordine", "encomenda"}},
	{entities.IntentProductQuestion, []string{"produit", "product", "prix", "price", "disponible", "available", "stock", "conseil", "recommande", "horaire", "hours", "ouvert", "open", "precio", "prezzo", "preço"}},
	{entities.IntentUrgentSupport, []string{"urgent", "problème", "problem", "help", "aide", "bug", "erreur", "error", "réclamation"}},
	{entities.IntentGreeting, []string{"bonjour", "hello", "salut", "hi", "bonsoir", "coucou", "hola", "ciao", "olá"}},
	{entities.IntentThanks, []string{"merci", "thank", "parfait", "super", "génial", "top", "gracias", "grazie", "obrigado"}},
	{entities.IntentComplaint, []string{"déçu", "mécontent", "nul", "mauvais", "insatisfait", "remboursement", "annuler", "refund", "cancel", "disappointed"}},
}

var topicTable = []topicKeywords{
	{entities.TopicPrices, wordPattern("price", "prices", "cost", "precio", "prix", "preço", "cuánto", "combien", "quanto", "tarif")},
	{entities.TopicHours, wordPattern("open", "hours", "horaire", "horaires", "abierto", "aberto", "fermé", "closed", "horas", "ore", "ouvert")},
	{entities.TopicProducts, wordPattern("product", "products", "vape", "disponible", "available", "producto", "produit", "produits", "geekbar")},
	{entities.TopicGreeting, wordPattern("hi", "hello", "hola", "salut", "ciao", "oi", "hey", "bonjour")},
}

var (
	positiveWords = []string{"bien", "parfait", "merci", "super", "génial", "top", "excellent", "great", "perfect", "thanks"}
	negativeWords = []string{"problème", "déçu", "nul", "mauvais", "erreur", "bug", "urgent", "problem", "bad", "disappointed", "refund"}
	urgencyWords  = []string{"urgent", "immédiat", "tout de suite", "maintenant", "asap", "immediately", "right now", "urgente"}
	englishMarker = wordPattern("hello", "hi", "english", "thank you")
)

type DetectorConfig struct {
	DefaultLanguage string
	HoursStart      int
	HoursEnd        int
	Location        *time.Location
}

// Detector classifies inbound messages. It holds no mutable state.
type Detector struct {
	cfg DetectorConfig
	now func() time.Time
}

func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "fr"
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Detector{cfg: cfg, now: time.Now}
}

// WithClock swaps the time source used for the business-hours check.
func (d *Detector) WithClock(now func() time.Time) *Detector {
	d.now = now
	return d
}

func (d *Detector) DefaultLanguage() string {
	return d.cfg.DefaultLanguage
}

// Detect never fails; unknown input degrades to the default language and
// the general intent.
func (d *Detector) Detect(message string) entities.IntentAnalysis {
	lower := strings.ToLower(message)
	lang, detected := d.DetectLanguage(message)

	intent, count := classifyIntent(lower)
	inHours := d.InBusinessHours()

	return entities.IntentAnalysis{
		Language:         lang,
		LanguageDetected: detected,
		Intent:           intent,
		Topic:            classifyTopic(lower),
		Sentiment:        classifySentiment(lower),
		Urgency:          classifyUrgency(lower, inHours),
		BusinessHours:    inHours,
		Confidence:       math.Min(float64(count)/3.0, 1.0),
		KeywordCount:     count,
	}
}

// DetectLanguage reports the language and whether any signal was found.
func (d *Detector) DetectLanguage(message string) (string, bool) {
	for _, r := range message {
		if r >= 0x0590 && r <= 0x05FF {
			return "he", true
		}
	}
	lower := strings.ToLower(message)
	for _, lp := range languagePatterns {
		if lp.pattern.MatchString(lower) {
			return lp.lang, true
		}
	}
	return d.cfg.DefaultLanguage, false
}

// Languages returns every language Detect can report, sorted.
func (d *Detector) Languages() []string {
	langs := []string{"he", d.cfg.DefaultLanguage}
	for _, lp := range languagePatterns {
		langs = append(langs, lp.lang)
	}
	slices.Sort(langs)
	return slices.Compact(langs)
}

// StrongLanguageSignal reports an explicit language preference in the text.
func (d *Detector) StrongLanguageSignal(message string) (string, bool) {
	if englishMarker.MatchString(strings.ToLower(message)) {
		return "en", true
	}
	return "", false
}

func (d *Detector) InBusinessHours() bool {
	h := d.now().In(d.cfg.Location).Hour()
	return h >= d.cfg.HoursStart && h <= d.cfg.HoursEnd
}

func classifyIntent(lower string) (entities.Intent, int) {
	best, bestCount := entities.IntentGeneral, 0
	for _, entry := range intentTable {
		n := 0
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = entry.intent, n
		}
	}
	return best, bestCount
}

func classifyTopic(lower string) entities.Topic {
	for _, entry := range topicTable {
		if entry.pattern.MatchString(lower) {
			return entry.topic
		}
	}
	return entities.TopicNone
}

func classifySentiment(lower string) entities.Sentiment {
	if containsAny(lower, positiveWords) {
		return entities.SentimentPositive
	}
	if containsAny(lower, negativeWords) {
		return entities.SentimentNegative
	}
	return entities.SentimentNeutral
}

func classifyUrgency(lower string, inHours bool) entities.Urgency {
	if containsAny(lower, urgencyWords) {
		return entities.UrgencyHigh
	}
	if !inHours {
		return entities.UrgencyLow
	}
	return entities.UrgencyNormal
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// isBlank reports whether s has no printable content.
func isBlank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
