package supervisor

import (
	"sync"
	"time"

	"github.com/amishk599/gigradar/internal/model"
	"github.com/amishk599/gigradar/internal/poller"
)

// State is a worker lifecycle stage. States only move forward.
type State int

const (
	StatePending State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	Source    model.Source      `json:"source"`
	State     State             `json:"state"`
	Busy      bool              `json:"busy"`
	Cycles    int               `json:"cycles"`
	Restarts  int               `json:"restarts"`
	LastCycle time.Time         `json:"last_cycle,omitzero"`
	LastStats poller.CycleStats `json:"last_stats"`
}

type worker struct {
	job  Job
	wake chan struct{} // 1-buffered so triggers coalesce
	done chan struct{} // closed when the worker has stopped for good

	mu        sync.Mutex
	state     State
	busy      bool
	cycles    int
	restarts  int
	lastCycle time.Time
	lastStats poller.CycleStats
}

func newWorker(job Job) *worker {
	return &worker{
		job:  job,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (w *worker) advance(to State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if to > w.state {
		w.state = to
	}
}

// begin marks a cycle as started unless the worker is already stopping.
func (w *worker) begin() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state >= StateStopping {
		return false
	}
	w.busy = true
	w.cycles++
	w.lastCycle = time.Now()
	return true
}

func (w *worker) end(stats poller.CycleStats) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	w.lastStats = stats
}

func (w *worker) restarted() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.restarts++
}

func (w *worker) status() WorkerStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WorkerStatus{
		Source:    w.job.Source(),
		State:     w.state,
		Busy:      w.busy,
		Cycles:    w.cycles,
		Restarts:  w.restarts,
		LastCycle: w.lastCycle,
		LastStats: w.lastStats,
	}
}
