// Package sweeper runs the engine's background retention job: garbage
// collecting queues left idle past a configurable window, and pruning
// push-notification configs for tasks that have been terminal past a
// retention window. Addresses the Open Question in §9 about push
// notification config lifecycle at task termination by making the cleanup
// policy itself pluggable — the engine carries no opinion beyond "what
// Sweeper is configured to do".
//
// Grounded on zkoranges-go-claw's internal/cron.Scheduler (Start/Stop over
// a cancelable context, a background goroutine, logged tick failures), but
// wired to the real github.com/robfig/cron/v3 scheduler rather than a bare
// time.Ticker, since the dependency is the thing this module wires for.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	cronlib "github.com/robfig/cron/v3"

	"github.com/theapemachine/a2a-engine/internal/eventqueue"
	"github.com/theapemachine/a2a-engine/internal/push"
	"github.com/theapemachine/a2a-engine/internal/queuemanager"
)

// Config controls the Sweeper's retention policy.
type Config struct {
	// Schedule is a standard 5-field cron expression, or "@every <dur>".
	// Defaults to "@every 1m".
	Schedule string

	// QueueIdleWindow is how long a queue may sit closed-but-unreferenced
	// before it's dropped from the Queue Manager registry.
	QueueIdleWindow time.Duration

	// PushConfigRetention is how long a task's push-notification config is
	// kept after the task is observed terminal. Zero disables pruning.
	PushConfigRetention time.Duration
}

// TaskState reports whether a task is in a terminal, prunable state and
// when it reached it — the minimal view the Sweeper needs to decide
// push-config retention without depending on internal/taskmanager.
type TaskState interface {
	// TerminalSince returns the time a task entered a terminal state and
	// true, or the zero time and false if it isn't terminal.
	TerminalSince(taskID string) (time.Time, bool)
}

// Sweeper periodically GCs idle queues and prunes stale push configs.
type Sweeper struct {
	cfg      Config
	queues   *queuemanager.Manager
	notifier *push.Notifier
	tasks    TaskState

	cron   *cronlib.Cron
	mu     sync.Mutex
	idleAt map[string]time.Time
}

// New builds a Sweeper over queues/notifier/tasks with the given Config;
// zero-value fields in cfg take their defaults.
func New(cfg Config, queues *queuemanager.Manager, notifier *push.Notifier, tasks TaskState) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.QueueIdleWindow <= 0 {
		cfg.QueueIdleWindow = 10 * time.Minute
	}

	return &Sweeper{
		cfg:      cfg,
		queues:   queues,
		notifier: notifier,
		tasks:    tasks,
		idleAt:   make(map[string]time.Time),
	}
}

// Start schedules the sweep job and begins running it. It is safe to call
// Stop even if Start was never called.
func (s *Sweeper) Start() error {
	s.cron = cronlib.New()

	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.sweep); err != nil {
		return err
	}

	s.cron.Start()
	log.Info("sweeper started", "schedule", s.cfg.Schedule, "queue_idle_window", s.cfg.QueueIdleWindow)
	return nil
}

// Stop halts the scheduler and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	log.Info("sweeper stopped")
}

func (s *Sweeper) sweep() {
	s.sweepIdleQueues()
	s.sweepPushConfigs()
}

// sweepIdleQueues drops closed queues from the registry once they've sat
// idle past QueueIdleWindow. A queue is considered idle the first tick it
// is observed closed; it's removed once it has stayed closed across the
// full window.
func (s *Sweeper) sweepIdleQueues() {
	now := time.Now()
	var toClose []string

	s.queues.Range(func(id string, q *eventqueue.Queue) {
		if !q.IsClosed() {
			s.clearIdle(id)
			return
		}

		s.mu.Lock()
		since, tracked := s.idleAt[id]
		if !tracked {
			s.idleAt[id] = now
		} else if now.Sub(since) >= s.cfg.QueueIdleWindow {
			toClose = append(toClose, id)
		}
		s.mu.Unlock()
	})

	for _, id := range toClose {
		if err := s.queues.Close(id); err != nil {
			log.Debug("sweeper: queue already gone", "queue_id", id, "error", err)
		} else {
			log.Info("sweeper: garbage collected idle queue", "queue_id", id)
		}
		s.clearIdle(id)
	}
}

func (s *Sweeper) clearIdle(id string) {
	s.mu.Lock()
	delete(s.idleAt, id)
	s.mu.Unlock()
}

// sweepPushConfigs prunes push-notification configs for tasks that have
// been terminal past PushConfigRetention. Disabled when the retention
// window is zero.
func (s *Sweeper) sweepPushConfigs() {
	if s.cfg.PushConfigRetention <= 0 || s.tasks == nil {
		return
	}

	now := time.Now()
	for _, taskID := range s.notifier.ConfiguredTaskIDs() {
		terminalSince, ok := s.tasks.TerminalSince(taskID)
		if !ok {
			continue
		}
		if now.Sub(terminalSince) < s.cfg.PushConfigRetention {
			continue
		}

		s.notifier.ClearConfig(taskID)
		log.Info("sweeper: pruned push notification config", "task_id", taskID)
	}
}
