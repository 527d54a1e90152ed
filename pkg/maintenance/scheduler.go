// Package maintenance runs periodic database upkeep while the API serves.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rubiojr/annots/pkg/log"
)

var logger = log.ForService("maintenance")

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = time.Hour

// Target is the store being maintained.
type Target interface {
	Optimize() error
	WALCheckpoint() error
}

type Config struct {
	Interval time.Duration
}

// Scheduler runs Optimize and WALCheckpoint on its target every interval.
type Scheduler struct {
	config Config
	target Target

	mu        sync.Mutex
	wg        sync.WaitGroup
	ctxCancel context.CancelFunc
	running   bool
	runs      int
}

func NewScheduler(config Config, target Target) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Scheduler{config: config, target: target}
}

// Start launches the maintenance loop. It stops when ctx is done or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("maintenance scheduler is already running")
	}

	ctx, s.ctxCancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.run(ctx)

	logger.Infof("maintenance scheduled every %v", s.config.Interval)
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debugf("maintenance loop stopped")
			return
		case <-ticker.C:
			logger.Debugf("running database maintenance")
			if err := s.RunOnce(); err != nil {
				logger.Errorf("database maintenance failed: %v", err)
			}
		}
	}
}

// RunOnce runs every maintenance step now. Steps after a failure still
// run; their errors are joined.
func (s *Scheduler) RunOnce() error {
	var errs []error
	if err := s.target.Optimize(); err != nil {
		errs = append(errs, fmt.Errorf("optimizing: %w", err))
	}
	if err := s.target.WALCheckpoint(); err != nil {
		errs = append(errs, fmt.Errorf("checkpointing: %w", err))
	}

	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	return errors.Join(errs...)
}

// Runs returns how many maintenance passes have completed.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.ctxCancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
