package backup

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/huddleworks/huddle/internal/notify"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom,
// month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SchedulerOpts configures a backup Scheduler.
type SchedulerOpts struct {
	DB       *gorm.DB
	Dir      string
	Retain   int           // full snapshots to keep; defaults to DefaultRetain
	Notifier notify.Adapter // optional; reports run outcomes
}

// Scheduler runs full backups plus retention cleanup on a cron schedule.
// Runs never overlap: a tick that fires while a run is still in progress
// is skipped.
type Scheduler struct {
	db       *gorm.DB
	dir      string
	retain   int
	notifier notify.Adapter

	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("backup: scheduler: db is required")
	}
	if opts.Dir == "" {
		return nil, fmt.Errorf("backup: scheduler: dir is required")
	}
	retain := opts.Retain
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Scheduler{
		db:       opts.DB,
		dir:      opts.Dir,
		retain:   retain,
		notifier: opts.Notifier,
		cron:     cron.New(cron.WithParser(cronParser)),
	}, nil
}

// Start registers the schedule and begins firing. The expression uses
// 5-field cron syntax, e.g. "0 3 * * *" for daily at 03:00.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return fmt.Errorf("backup: scheduler: parse %q: %w", schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule. A run already in progress finishes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce performs one full-backup-plus-cleanup pass, skipping if another
// pass is still running.
func (s *Scheduler) RunOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Printf("backup: scheduler: previous run still in progress, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	res, err := Full(s.db, s.dir)
	if err != nil {
		log.Printf("backup: scheduled full backup failed: %v", err)
		s.notify(notify.Event{
			Title:    "Scheduled backup failed",
			Body:     err.Error(),
			Severity: notify.SeverityError,
		})
		return
	}

	// Cleanup failures never fail the completed backup.
	cleanup, err := Cleanup(s.dir, s.retain)
	if err != nil {
		log.Printf("backup: scheduled cleanup failed: %v", err)
	}

	s.notify(notify.Event{
		Title: "Scheduled backup complete",
		Body: fmt.Sprintf("wrote %s in %s; retained %d, removed %d",
			res.File, time.Since(start).Round(time.Millisecond), cleanup.Retained, cleanup.Removed),
		Severity: notify.SeveritySuccess,
	})
}

func (s *Scheduler) notify(ev notify.Event) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.notifier.Send(ctx, ev); err != nil {
		log.Printf("backup: notify: %v", err)
	}
}
