package scheduler

import (
	"context"
	"log"
	"sync"
)

// Runner is any periodic job that blocks in Start until ctx is cancelled.
type Runner interface {
	Start(ctx context.Context)
}

// Scheduler owns the lifecycle of the pipeline's periodic jobs: one
// goroutine per job, started together, stopped together by cancelling the
// context passed to Run.
type Scheduler struct {
	jobs  []namedRunner
	mu    sync.Mutex
	began bool
}

type namedRunner struct {
	name   string
	runner Runner
}

func New() *Scheduler {
	return &Scheduler{}
}

// Register adds a job under a name used in logs. Must be called before Run.
func (s *Scheduler) Register(name string, r Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.began {
		log.Printf("scheduler already running, job %s not registered", name)
		return
	}
	s.jobs = append(s.jobs, namedRunner{name: name, runner: r})
}

// Run starts every registered job and blocks until ctx is cancelled and all
// jobs have returned.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.began = true
	jobs := s.jobs
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j namedRunner) {
			defer wg.Done()
			log.Printf("job %s starting", j.name)
			j.runner.Start(ctx)
			log.Printf("job %s stopped", j.name)
		}(j)
	}
	wg.Wait()
}
