// Package scheduler owns the timers that drive the tracker: the telemetry
// poll, the elapsed-time label tick, and the background history refresh.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/watchover/internal/tracker"
)

// Intervals configures the three repeating jobs.
type Intervals struct {
	Poll    time.Duration
	Label   time.Duration
	History time.Duration
}

// Scheduler is a two-state (stopped/running) lifecycle around gocron,
// bound to login state: Start on login, Stop on logout.
type Scheduler struct {
	mu        sync.Mutex
	running   bool
	scheduler *gocron.Scheduler
	service   *tracker.Service
	intervals Intervals
}

func New(service *tracker.Service, intervals Intervals) *Scheduler {
	if intervals.Poll <= 0 {
		intervals.Poll = 15 * time.Second
	}
	if intervals.Label <= 0 {
		intervals.Label = time.Second
	}
	if intervals.History <= 0 {
		intervals.History = time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		intervals: intervals,
	}
}

// Start arms the three repeating jobs and fires one immediate telemetry
// poll. Idempotent while running.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// First poll fires right away so the view populates before the first
	// 15s tick.
	go s.pollOnce()

	if _, err := s.scheduler.Every(int(s.intervals.Poll.Seconds())).Seconds().Do(s.pollOnce); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(int(s.intervals.Label.Seconds())).Seconds().Do(s.service.RefreshElapsedLabel); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(int(s.intervals.History.Seconds())).Seconds().Do(s.refreshHistory); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.running = true
	log.Println("scheduler: started")
	return nil
}

// Stop cancels all jobs. Idempotent; a fetch already in flight is allowed
// to finish (its write is stale but harmless, and logout clears the caches
// afterwards).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.scheduler.Stop()
	s.scheduler.Clear()
	s.running = false
	log.Println("scheduler: stopped")
}

// Running reports the lifecycle state.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.service.PollOnce(ctx)
}

// refreshHistory skips the cycle when a refresh is already in flight;
// overlapping refreshes would double-write the snapshot cache. The poll job
// deliberately has no such guard: overlapping polls are idempotent.
func (s *Scheduler) refreshHistory() {
	if s.service.RefreshInProgress() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s.service.RefreshHistory(ctx)
}
