// Package supervisor runs one polling worker per source and owns their
// lifecycle: force-update wakeups, crash recovery and bounded shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/gigradar/internal/bus"
	"github.com/amishk599/gigradar/internal/model"
	"github.com/amishk599/gigradar/internal/poller"
)

var (
	// ErrShutdownTimeout is returned when workers outlive both the grace
	// period and the forced-kill wait.
	ErrShutdownTimeout = errors.New("shutdown timed out")
	// ErrAlreadyRunning is returned by a second call to Start.
	ErrAlreadyRunning = errors.New("supervisor already running")
)

const (
	defaultGrace        = 10 * time.Second
	defaultKillTimeout  = 5 * time.Second
	defaultRestartDelay = 5 * time.Second
)

// Job is one source's fetch cycle. *poller.SourcePoller implements it.
type Job interface {
	Source() model.Source
	Interval() time.Duration
	Poll(ctx context.Context) poller.CycleStats
}

// Subscriber hands out bus subscriptions; used for the control topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topics ...string) (*bus.Subscription, error)
}

// Options tunes shutdown and restart behaviour. Zero values use defaults.
type Options struct {
	Grace        time.Duration // wait for workers after the stop request
	KillTimeout  time.Duration // wait after cancelling in-flight cycles
	RestartDelay time.Duration // pause before restarting a crashed worker
	Control      Subscriber    // optional; each ControlTopic message triggers all workers
}

// Supervisor runs workers concurrently, one per job.
type Supervisor struct {
	workers []*worker
	opts    Options
	logger  *slog.Logger

	mu         sync.Mutex
	started    bool
	soft       context.Context // cancelled on stop request; no new cycles
	hard       context.Context // cancelled on escalation; aborts in-flight cycles
	cancelSoft context.CancelFunc
	cancelHard context.CancelFunc
}

// New creates a supervisor with every worker Pending.
func New(jobs []Job, opts Options, logger *slog.Logger) *Supervisor {
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = defaultKillTimeout
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	workers := make([]*worker, len(jobs))
	for i, job := range jobs {
		workers[i] = newWorker(job)
	}
	return &Supervisor{workers: workers, opts: opts, logger: logger}
}

// Run starts every worker and blocks until ctx is cancelled, then shuts down.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("shutting down supervisor")
	return s.Shutdown(context.Background())
}

// Start launches the workers and returns immediately. Cancelling ctx does
// not stop them; call Shutdown.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyRunning
	}

	base := context.WithoutCancel(ctx)
	s.soft, s.cancelSoft = context.WithCancel(base)
	s.hard, s.cancelHard = context.WithCancel(base)

	if s.opts.Control != nil {
		sub, err := s.opts.Control.Subscribe(s.soft, model.ControlTopic)
		if err != nil {
			s.cancelSoft()
			s.cancelHard()
			return fmt.Errorf("subscribing to %s: %w", model.ControlTopic, err)
		}
		go s.listen(sub)
	}

	s.started = true
	s.logger.Info("starting supervisor", "workers", len(s.workers))
	for _, w := range s.workers {
		go s.supervise(w)
	}
	return nil
}

// listen turns control topic messages into force-update triggers.
func (s *Supervisor) listen(sub *bus.Subscription) {
	defer sub.Close()
	for range sub.C() {
		s.logger.Info("force update requested", "topic", model.ControlTopic)
		s.Trigger()
	}
}

// Trigger asks every worker to run a cycle now. Triggers arriving while a
// worker is busy or not yet awake collapse into one extra cycle.
func (s *Supervisor) Trigger() {
	for _, w := range s.workers {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// supervise keeps w's loop alive until stop, restarting it after a crash.
func (s *Supervisor) supervise(w *worker) {
	defer close(w.done)
	defer w.advance(StateStopped)

	w.advance(StateRunning)
	for {
		if !s.loop(w) {
			return
		}
		w.restarted()
		s.logger.Warn("restarting worker", "source", string(w.job.Source()), "after", s.opts.RestartDelay.String())
		select {
		case <-s.soft.Done():
			return
		case <-time.After(s.opts.RestartDelay):
		}
	}
}

// loop runs cycles until stop. It reports whether it crashed.
func (s *Supervisor) loop(w *worker) (crashed bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("worker crashed",
				"source", string(w.job.Source()),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			crashed = true
		}
	}()

	for {
		if !s.cycle(w) {
			return false
		}

		timer := time.NewTimer(w.job.Interval())
		select {
		case <-s.soft.Done():
			timer.Stop()
			return false
		case <-w.wake:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// cycle runs one recovered poll. It returns false once w is stopping.
func (s *Supervisor) cycle(w *worker) bool {
	if !w.begin() {
		return false
	}
	w.end(s.poll(w))
	return true
}

// poll runs the job, turning a panic into an empty cycle.
func (s *Supervisor) poll(w *worker) (stats poller.CycleStats) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("poll cycle panicked",
				"source", string(w.job.Source()),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			stats = poller.CycleStats{}
		}
	}()
	return w.job.Poll(s.hard)
}

// Shutdown moves every worker to Stopping and waits for them within the
// grace period. Stragglers have their in-flight cycle cancelled, which kills
// any child processes bound to it. ctx cancellation skips straight to the
// forced phase.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	for _, w := range s.workers {
		w.advance(StateStopping)
	}
	s.cancelSoft()

	if s.wait(ctx, s.opts.Grace) {
		s.cancelHard()
		s.logger.Info("all workers stopped")
		return nil
	}

	s.logger.Warn("grace period elapsed, cancelling in-flight cycles", "alive", s.alive())
	s.cancelHard()
	if s.wait(context.Background(), s.opts.KillTimeout) {
		return nil
	}
	return fmt.Errorf("%w: workers still alive: %s", ErrShutdownTimeout, strings.Join(s.alive(), ", "))
}

// wait reports whether every worker exited within d.
func (s *Supervisor) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for _, w := range s.workers {
		select {
		case <-w.done:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (s *Supervisor) alive() []string {
	var names []string
	for _, w := range s.workers {
		select {
		case <-w.done:
		default:
			names = append(names, string(w.job.Source()))
		}
	}
	return names
}

// States returns a snapshot of every worker in job order.
func (s *Supervisor) States() []WorkerStatus {
	out := make([]WorkerStatus, len(s.workers))
	for i, w := range s.workers {
		out[i] = w.status()
	}
	return out
}
