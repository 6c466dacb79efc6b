package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/infrastructure"
	"luma_assistant/internal/interfaces"
	"luma_assistant/internal/repository"
)

const (
	TaskMorningBriefing = "morning_briefing"
	TaskHealthCheck     = "business_health_check"
	TaskLunchReminder   = "lunch_reminder"
	TaskAfternoonCheck  = "afternoon_check"
	TaskEndOfDay        = "end_of_day"
	TaskWeekendPrep     = "weekend_prep"

	followUpPrefix = "follow_up_alert:"
)

var ErrEmptyAlert = errors.New("alert message is required")

// operator-facing phrases for the routine updates, keyed by language
var updatePhrases = map[string]map[string]string{
	"fr": {
		"waiting":   "%d client(s) attendent une réponse de ta part.",
		"lunch":     "C'est l'heure de la pause déjeuner 🥗 Je surveille les messages.",
		"afternoon": "%d messages traités depuis ce matin.",
		"end":       "Journée terminée : %d messages, %d transferts, %d alertes.",
		"weekend":   "Le week-end approche ! Pense à vérifier le stock et les horaires du samedi.",
		"follow_up": "Relance : l'alerte « %s » attend toujours une action.",
	},
	"en": {
		"waiting":   "%d client(s) are waiting for your answer.",
		"lunch":     "Lunch time 🥗 I'm keeping an eye on the messages.",
		"afternoon": "%d messages handled since this morning.",
		"end":       "Day done: %d messages, %d handoffs, %d alerts.",
		"weekend":   "Weekend is coming! Check the stock and Saturday hours.",
		"follow_up": "Reminder: the alert \"%s\" still needs action.",
	},
}

// BusinessTasks owns the operator routine: daily briefings, health checks
// and alert follow-ups, all driven by the task poller.
type BusinessTasks struct {
	poller        *infrastructure.TaskPoller
	catalog       *repository.TemplateCatalog
	store         *repository.ContextStore
	digest        *BusinessDigest
	notifier      interfaces.Notifier
	metrics       *infrastructure.Metrics
	lang          string
	followUpDelay time.Duration
	now           func() time.Time
	logger        logrus.FieldLogger
}

func NewBusinessTasks(
	poller *infrastructure.TaskPoller,
	catalog *repository.TemplateCatalog,
	store *repository.ContextStore,
	digest *BusinessDigest,
	notifier interfaces.Notifier,
	metrics *infrastructure.Metrics,
	lang string,
	followUpDelay time.Duration,
	logger logrus.FieldLogger,
) *BusinessTasks {
	if lang == "" {
		lang = catalog.DefaultLanguage()
	}
	if followUpDelay <= 0 {
		followUpDelay = 30 * time.Minute
	}
	return &BusinessTasks{
		poller:        poller,
		catalog:       catalog,
		store:         store,
		digest:        digest,
		notifier:      notifier,
		metrics:       metrics,
		lang:          lang,
		followUpDelay: followUpDelay,
		now:           time.Now,
		logger:        logger.WithField("component", "business_tasks"),
	}
}

// RegisterDefaults installs the weekday routine.
func (b *BusinessTasks) RegisterDefaults() error {
	fridays := []time.Weekday{time.Friday}
	defs := []struct {
		name, desc string
		trigger    infrastructure.Trigger
		fn         infrastructure.TaskFunc
	}{
		{TaskMorningBriefing, "Morning summary for the owner", infrastructure.Weekly(8, 0, infrastructure.Weekdays...), b.MorningBriefing},
		{TaskHealthCheck, "Clients waiting for a human", infrastructure.Weekly(10, 0, infrastructure.Weekdays...), b.healthCheck},
		{TaskLunchReminder, "Lunch break reminder", infrastructure.Weekly(12, 30, infrastructure.Weekdays...), b.lunchReminder},
		{TaskAfternoonCheck, "Afternoon activity check", infrastructure.Weekly(15, 0, infrastructure.Weekdays...), b.afternoonCheck},
		{TaskEndOfDay, "End of day summary", infrastructure.Weekly(18, 0, infrastructure.Weekdays...), b.endOfDay},
		{TaskWeekendPrep, "Weekend preparation", infrastructure.Weekly(16, 0, fridays...), b.weekendPrep},
	}
	for _, d := range defs {
		if err := b.poller.Register(d.name, d.desc, d.trigger, d.fn); err != nil {
			return err
		}
	}
	return nil
}

// MorningBriefing renders and sends the briefing now. It is also what the
// admin trigger calls.
func (b *BusinessTasks) MorningBriefing(ctx context.Context) error {
	text, err := b.catalog.Render(b.lang, "morning_briefing", b.digest.BriefingSlots(b.lang, b.store.CountEscalated()))
	if err != nil {
		return fmt.Errorf("render briefing: %w", err)
	}
	return b.notify(ctx, entities.EventBusinessUpdate, text, entities.UrgencyNormal)
}

func (b *BusinessTasks) healthCheck(ctx context.Context) error {
	waiting := b.store.CountEscalated()
	if waiting == 0 {
		return nil
	}
	return b.update(ctx, fmt.Sprintf(b.phrase("waiting"), waiting), false)
}

func (b *BusinessTasks) lunchReminder(ctx context.Context) error {
	return b.update(ctx, b.phrase("lunch"), false)
}

func (b *BusinessTasks) afternoonCheck(ctx context.Context) error {
	s := b.digest.Snapshot()
	return b.update(ctx, fmt.Sprintf(b.phrase("afternoon"), s.Messages), s.Messages > 0 && s.Negative == 0)
}

func (b *BusinessTasks) endOfDay(ctx context.Context) error {
	s := b.digest.Reset()
	return b.update(ctx, fmt.Sprintf(b.phrase("end"), s.Messages, s.Escalations, s.Alerts), s.Escalations == 0)
}

func (b *BusinessTasks) weekendPrep(ctx context.Context) error {
	return b.update(ctx, b.phrase("weekend"), true)
}

// RaiseAlert forwards an external alert to the operator and schedules a
// one-off reminder. It returns the alert id.
func (b *BusinessTasks) RaiseAlert(ctx context.Context, message, source string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyAlert
	}
	if source != "" {
		message = fmt.Sprintf("[%s] %s", source, message)
	}

	text, err := b.catalog.Render(b.lang, "urgent_alert", map[string]string{"message": message})
	if err != nil {
		return "", fmt.Errorf("render alert: %w", err)
	}
	b.digest.ObserveAlert()
	if err := b.notify(ctx, entities.EventUrgentAlert, text, entities.UrgencyHigh); err != nil {
		return "", err
	}

	id := uuid.NewString()
	followUp := func(ctx context.Context) error {
		return b.update(ctx, fmt.Sprintf(b.phrase("follow_up"), message), false)
	}
	if err := b.poller.Register(followUpPrefix+id, "Follow-up for alert", infrastructure.Once(b.followUpDelay), followUp); err != nil {
		b.logger.WithError(err).Warn("failed to schedule alert follow-up")
	}
	return id, nil
}

func (b *BusinessTasks) update(ctx context.Context, message string, positive bool) error {
	slots := map[string]string{"message": message}
	if positive {
		slots["positive"] = "true"
	}
	text, err := b.catalog.Render(b.lang, "business_update", slots)
	if err != nil {
		return fmt.Errorf("render update: %w", err)
	}
	return b.notify(ctx, entities.EventBusinessUpdate, text, entities.UrgencyLow)
}

func (b *BusinessTasks) notify(ctx context.Context, typ entities.EventType, text string, urgency entities.Urgency) error {
	if b.notifier == nil {
		b.logger.WithField("type", typ).Info(text)
		return nil
	}
	evt := entities.NotificationEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		Message:   text,
		Urgency:   urgency,
		CreatedAt: b.now(),
	}
	if err := b.notifier.Notify(ctx, evt); err != nil {
		b.metrics.ObserveNotification(string(typ), "error")
		return fmt.Errorf("notify %s: %w", typ, err)
	}
	b.metrics.ObserveNotification(string(typ), "ok")
	return nil
}

func (b *BusinessTasks) phrase(key string) string {
	if p, ok := updatePhrases[b.lang]; ok {
		return p[key]
	}
	return updatePhrases["fr"][key]
}
