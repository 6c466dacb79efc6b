package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"luma_assistant/internal/entities"
	"luma_assistant/internal/infrastructure"
	"luma_assistant/internal/repository"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrUsageUnavailable = errors.New("usage history requires a database")
)

// UsageReader reads the persisted daily counters.
type UsageReader interface {
	GetDayUsage(ctx context.Context, day time.Time) (repository.DailyUsage, error)
	GetUsageHistory(ctx context.Context, since time.Time) ([]repository.DailyUsage, error)
}

type DashboardStats struct {
	Clients   int                            `json:"clients"`
	Escalated int                            `json:"escalated"`
	Tasks     int                            `json:"tasks"`
	Digest    DigestSnapshot                 `json:"digest"`
	Today     *repository.DailyUsage         `json:"today,omitempty"`
	WhatsApp  *infrastructure.WhatsAppStatus `json:"whatsapp,omitempty"`
}

// DashboardUsecase is the operator's read/write view over the running
// assistant: client memory, the task schedule and usage counters.
type DashboardUsecase struct {
	store    *repository.ContextStore
	poller   *infrastructure.TaskPoller
	tasks    *BusinessTasks
	digest   *BusinessDigest
	usage    UsageReader
	whatsapp *infrastructure.WhatsAppGateway
	now      func() time.Time
}

// NewDashboardUsecase wires the view; usage and whatsapp may be nil.
func NewDashboardUsecase(store *repository.ContextStore, poller *infrastructure.TaskPoller, tasks *BusinessTasks, digest *BusinessDigest, usage UsageReader, whatsapp *infrastructure.WhatsAppGateway) *DashboardUsecase {
	return &DashboardUsecase{
		store:    store,
		poller:   poller,
		tasks:    tasks,
		digest:   digest,
		usage:    usage,
		whatsapp: whatsapp,
		now:      time.Now,
	}
}

func (u *DashboardUsecase) Stats(ctx context.Context) (DashboardStats, error) {
	stats := DashboardStats{
		Clients:   u.store.Len(),
		Escalated: u.store.CountEscalated(),
		Tasks:     len(u.poller.Tasks()),
		Digest:    u.digest.Snapshot(),
	}
	if u.usage != nil {
		today, err := u.usage.GetDayUsage(ctx, u.now())
		if err != nil {
			return stats, err
		}
		stats.Today = &today
	}
	if u.whatsapp != nil {
		st := u.whatsapp.Status()
		stats.WhatsApp = &st
	}
	return stats, nil
}

func (u *DashboardUsecase) ClientContext(clientID string) (entities.ClientContext, error) {
	c, ok := u.store.Get(clientID)
	if !ok {
		return entities.ClientContext{}, fmt.Errorf("%s: %w", clientID, repository.ErrUnknownClient)
	}
	return c, nil
}

// ResolveEscalation marks a handed-off client as taken care of.
func (u *DashboardUsecase) ResolveEscalation(clientID string) error {
	if !u.store.ClearEscalation(clientID) {
		return fmt.Errorf("%s: %w", clientID, repository.ErrUnknownClient)
	}
	return nil
}

func (u *DashboardUsecase) Tasks() []infrastructure.TaskInfo {
	return u.poller.Tasks()
}

func (u *DashboardUsecase) RemoveTask(name string) error {
	if !u.poller.Unregister(name) {
		return fmt.Errorf("%s: %w", name, ErrTaskNotFound)
	}
	return nil
}

// TriggerBriefing runs the scheduled briefing task now. If the operator
// removed it from the schedule, the briefing is still sent directly.
func (u *DashboardUsecase) TriggerBriefing(ctx context.Context) error {
	err := u.poller.RunNow(ctx, TaskMorningBriefing)
	if errors.Is(err, infrastructure.ErrTaskNotRegistered) {
		return u.tasks.MorningBriefing(ctx)
	}
	return err
}

func (u *DashboardUsecase) UsageHistory(ctx context.Context, days int) ([]repository.DailyUsage, error) {
	if u.usage == nil {
		return nil, ErrUsageUnavailable
	}
	if days <= 0 || days > 90 {
		days = 7
	}
	return u.usage.GetUsageHistory(ctx, u.now().AddDate(0, 0, -days+1))
}

// HandleCommand answers operator chat commands.
func (u *DashboardUsecase) HandleCommand(ctx context.Context, command, _ string) string {
	switch command {
	case "status":
		s, err := u.Stats(ctx)
		if err != nil {
			return "Erreur : " + err.Error()
		}
		return fmt.Sprintf("Clients : %d\nEn attente d'un humain : %d\nMessages aujourd'hui : %d\nAlertes : %d",
			s.Clients, s.Escalated, s.Digest.Messages, s.Digest.Alerts)
	case "tasks":
		tasks := u.Tasks()
		if len(tasks) == 0 {
			return "Aucune tâche planifiée."
		}
		var sb strings.Builder
		for _, t := range tasks {
			fmt.Fprintf(&sb, "• %s : %s\n", t.Name, t.NextRun.Format("02/01 15:04"))
		}
		return strings.TrimRight(sb.String(), "\n")
	case "briefing":
		if err := u.TriggerBriefing(ctx); err != nil {
			return "Erreur : " + err.Error()
		}
		return "Briefing envoyé ✅"
	}
	return ""
}
