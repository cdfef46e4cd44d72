package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	CountdownInterval  = time.Second
	MetricsInterval    = 2400 * time.Millisecond
	RemotePollInterval = 15 * time.Second
)

type tickJob struct {
	name     string
	interval time.Duration
	task     func()
}

// Scheduler drives the background ticks of an engine.
type Scheduler struct {
	sched gocron.Scheduler
}

func NewScheduler(engine *Engine) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %v", err)
	}

	jobs := []tickJob{
		{"countdown", CountdownInterval, engine.TickCountdown},
		{"metrics", MetricsInterval, engine.TickMetrics},
	}
	if engine.RemoteEnabled() {
		jobs = append(jobs, tickJob{"remote-sessions", RemotePollInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			engine.PollRemoteSessions(ctx)
		}})
	}

	for _, job := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.task),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s: %v", job.name, err)
		}
	}

	return &Scheduler{sched: sched}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	log.Println("Background ticks started")
}

func (s *Scheduler) Stop() {
	if err := s.sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
}
