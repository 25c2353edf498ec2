package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/account-reconciler/internal/logging"
)

// DefaultPollInterval is how often the background worker wakes up. Each tick
// attempts a background validation sweep (which self-gates on cooldown,
// throttle and the sweep flag) and an exception-retry sweep (which self-gates
// on per-account backoff).
const DefaultPollInterval = 60 * time.Second

// Worker periodically drives the orchestrator's background sweeps so the
// roster converges even when no UI action triggers a refresh.
type Worker struct {
	orchestrator *Orchestrator
	pollInterval time.Duration
	logger       *logging.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the background worker.
type WorkerConfig struct {
	// Orchestrator to drive. Required.
	Orchestrator *Orchestrator
	// PollInterval between wake-ups. Default: 60s.
	PollInterval time.Duration
	// Logger for lifecycle messages. Optional.
	Logger *logging.Logger
}

// NewWorker creates a background revalidation worker.
func NewWorker(cfg *WorkerConfig) (*Worker, error) {
	if cfg == nil || cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Worker{
		orchestrator: cfg.Orchestrator,
		pollInterval: interval,
		logger:       logger.WithField("component", "worker"),
	}, nil
}

// Start launches the poll loop. Starting an already-running worker is an
// error.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.WithField("pollInterval", w.pollInterval.String()).Info("Background worker started")

	go w.run(ctx)
	return nil
}

// Stop signals the poll loop to exit and waits for it to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	w.logger.Info("Background worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.orchestrator.ValidateAllInBackground(ctx)
			w.orchestrator.RetryExceptionAccounts(ctx)
		}
	}
}
