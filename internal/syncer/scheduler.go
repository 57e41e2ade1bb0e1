package syncer

import (
	"context"
	"io"
	"log"
	"sync"
	"time"
)

// Runner is the scheduler's view of the orchestrator.
type Runner interface {
	Run(ctx context.Context) Outcome
	Ready() bool
}

// Scheduler invokes the runner on a fixed interval. Start and Stop are
// idempotent. The scheduler performs no queuing or skipping of its own;
// the orchestrator's single-flight guard makes overlapping ticks safe.
type Scheduler struct {
	runner Runner
	logger *log.Logger

	mu       sync.Mutex
	stop     chan struct{}
	interval time.Duration
}

// NewScheduler creates a stopped scheduler. logger may be nil.
func NewScheduler(runner Runner, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scheduler{runner: runner, logger: logger}
}

// Start installs the periodic timer. It is a no-op (logged) when the
// scheduler is already running, when intervalMinutes is not positive, or
// when the version-control client is unavailable.
func (s *Scheduler) Start(intervalMinutes int) {
	if intervalMinutes <= 0 {
		s.logger.Printf("scheduler: refusing interval %dm", intervalMinutes)
		return
	}
	s.start(time.Duration(intervalMinutes) * time.Minute)
}

func (s *Scheduler) start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.logger.Printf("scheduler: already running every %s, ignoring start", s.interval)
		return
	}
	if !s.runner.Ready() {
		s.logger.Printf("scheduler: version-control client unavailable, not starting")
		return
	}

	stop := make(chan struct{})
	s.stop = stop
	s.interval = interval
	go s.loop(interval, stop)
	s.logger.Printf("scheduler: started, interval %s", interval)
}

func (s *Scheduler) loop(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// A stop issued while a tick was pending wins over the tick.
			select {
			case <-stop:
				return
			default:
			}
			s.runner.Run(context.Background())
		case <-stop:
			return
		}
	}
}

// Stop cancels the timer. It signals the tick loop rather than waiting
// for it, so a run may stop or restart the scheduler from inside its own
// tick (the settings observer does exactly that). A run already underway
// finishes; the orchestrator's single-flight guard covers any tick that
// fires alongside the stop. Calling Stop while not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.interval = 0
	s.logger.Printf("scheduler: stopped")
}

// Running reports whether a timer is installed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Interval returns the installed tick interval, or zero when stopped.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Restart stops any installed timer and starts a new one with the given
// interval. Used when settings change.
func (s *Scheduler) Restart(intervalMinutes int) {
	s.Stop()
	s.Start(intervalMinutes)
}
