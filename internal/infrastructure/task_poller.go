package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Trigger says when a task is due: a time of day on some weekdays, or once
// after a delay.
type Trigger struct {
	Hour     int
	Minute   int
	Weekdays []time.Weekday // empty means every day
	Delay    time.Duration  // > 0 makes the task one-shot
}

func Daily(hour, minute int) Trigger {
	return Trigger{Hour: hour, Minute: minute}
}

func Weekly(hour, minute int, days ...time.Weekday) Trigger {
	return Trigger{Hour: hour, Minute: minute, Weekdays: days}
}

func Once(delay time.Duration) Trigger {
	return Trigger{Delay: delay}
}

var ErrTaskNotRegistered = errors.New("task not registered")

var Weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

func (t Trigger) once() bool { return t.Delay > 0 }

func (t Trigger) validate() error {
	if t.once() {
		return nil
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("invalid time of day %02d:%02d", t.Hour, t.Minute)
	}
	return nil
}

func (t Trigger) allows(d time.Weekday) bool {
	if len(t.Weekdays) == 0 {
		return true
	}
	for _, w := range t.Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// next returns the first occurrence strictly after 'after'.
func (t Trigger) next(after time.Time, loc *time.Location) time.Time {
	if t.once() {
		return after.Add(t.Delay)
	}
	local := after.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), t.Hour, t.Minute, 0, 0, loc)
	for i := 0; i < 8; i++ {
		if candidate.After(local) && t.allows(candidate.Weekday()) {
			return candidate
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

type TaskFunc func(ctx context.Context) error

type scheduledTask struct {
	name        string
	description string
	trigger     Trigger
	fn          TaskFunc
	nextRun     time.Time
	lastRun     time.Time
	runs        int
}

// TaskInfo is a read-only view of a registered task.
type TaskInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run,omitempty"`
	Runs        int       `json:"runs"`
	Once        bool      `json:"once"`
}

// TaskPoller wakes on a fixed interval and runs whatever is due. Tasks are
// keyed by name; registering a name again replaces the previous task.
type TaskPoller struct {
	mu       sync.Mutex
	tasks    map[string]*scheduledTask
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   logrus.FieldLogger
	metrics  *Metrics

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewTaskPoller(interval time.Duration, loc *time.Location, logger logrus.FieldLogger) *TaskPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TaskPoller{
		tasks:    make(map[string]*scheduledTask),
		interval: interval,
		loc:      loc,
		now:      time.Now,
		logger:   logger.WithField("component", "scheduler"),
		stopCh:   make(chan struct{}),
	}
}

func (p *TaskPoller) WithClock(now func() time.Time) *TaskPoller {
	p.now = now
	return p
}

func (p *TaskPoller) WithMetrics(m *Metrics) *TaskPoller {
	p.metrics = m
	return p
}

func (p *TaskPoller) Register(name, description string, trigger Trigger, fn TaskFunc) error {
	if name == "" {
		return errors.New("task name is required")
	}
	if fn == nil {
		return fmt.Errorf("task %s: callback is required", name)
	}
	if err := trigger.validate(); err != nil {
		return fmt.Errorf("task %s: %w", name, err)
	}

	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.tasks[name]; exists {
		p.logger.WithField("task", name).Info("replacing scheduled task")
	}
	p.tasks[name] = &scheduledTask{
		name:        name,
		description: description,
		trigger:     trigger,
		fn:          fn,
		nextRun:     trigger.next(now, p.loc),
	}
	return nil
}

// Unregister removes one task and reports whether it existed.
func (p *TaskPoller) Unregister(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[name]
	delete(p.tasks, name)
	return ok
}

func (p *TaskPoller) Tasks() []TaskInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TaskInfo, 0, len(p.tasks))
	for _, t := range p.tasks {
		out = append(out, TaskInfo{
			Name:        t.name,
			Description: t.description,
			NextRun:     t.nextRun,
			LastRun:     t.lastRun,
			Runs:        t.runs,
			Once:        t.trigger.once(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run blocks until Stop is called or ctx is done.
func (p *TaskPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.WithField("interval", p.interval).Info("scheduler started")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopped (context done)")
			return nil
		case <-p.stopCh:
			p.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			p.runDue(ctx, p.now())
		}
	}
}

// Stop asks the loop to exit at its next wake-up. A task already running
// finishes first.
func (p *TaskPoller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// RunNow executes a registered task immediately, outside its schedule.
func (p *TaskPoller) RunNow(ctx context.Context, name string) error {
	p.mu.Lock()
	t, ok := p.tasks[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("task %s: %w", name, ErrTaskNotRegistered)
	}
	return p.execute(ctx, t.name, t.fn)
}

func (p *TaskPoller) runDue(ctx context.Context, now time.Time) int {
	type dueTask struct {
		name string
		fn   TaskFunc
	}

	p.mu.Lock()
	var due []dueTask
	for name, t := range p.tasks {
		if t.nextRun.After(now) {
			continue
		}
		due = append(due, dueTask{name: name, fn: t.fn})
		t.lastRun = now
		t.runs++
		if t.trigger.once() {
			delete(p.tasks, name)
		} else {
			t.nextRun = t.trigger.next(now, p.loc)
		}
	}
	p.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].name < due[j].name })
	for _, d := range due {
		_ = p.execute(ctx, d.name, d.fn)
	}
	return len(due)
}

// execute runs one callback; errors and panics are logged, never propagated
// to the loop.
func (p *TaskPoller) execute(ctx context.Context, name string, fn TaskFunc) (err error) {
	log := p.logger.WithField("task", name)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
			log.WithField("panic", r).Error("scheduled task panicked")
			p.metrics.ObserveTaskRun(name, "panic")
		}
	}()

	if err = fn(ctx); err != nil {
		log.WithError(err).Error("scheduled task failed")
		p.metrics.ObserveTaskRun(name, "error")
		return err
	}
	log.Debug("scheduled task done")
	p.metrics.ObserveTaskRun(name, "ok")
	return nil
}
