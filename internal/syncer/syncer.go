package syncer

import (
	"context"
	"sync"
	"time"

	"fieldsync/internal/engine"
	"fieldsync/internal/job"
)

// DefaultProbeInterval is how often connectivity is re-checked.
const DefaultProbeInterval = 15 * time.Second

// Probe answers whether the backend is currently reachable.
type Probe interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// Pinger is the slice of the backend the HTTP probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHTTPProbe treats a successful backend health check as online.
func NewHTTPProbe(p Pinger) Probe {
	return ProbeFunc(func(ctx context.Context) bool {
		return p.Ping(ctx) == nil
	})
}

// Engine is the slice of the service the coordinator drives.
type Engine interface {
	FlushQueue(ctx context.Context) (engine.FlushResult, error)
	Refresh(ctx context.Context, jobID string) (*job.Job, error)
	TrackedJobs() ([]string, error)
}

// Coordinator watches connectivity and, on each offline-to-online
// transition, flushes the pending queue and then refreshes every tracked
// job. Refreshes are deduplicated: a job already being refreshed is not
// scheduled again until its in-flight refresh finishes.
type Coordinator struct {
	probe    Probe
	engine   Engine
	logger   engine.Logger
	interval time.Duration

	mu       sync.Mutex
	online   bool
	inflight map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Coordinator. A zero interval uses DefaultProbeInterval.
func New(probe Probe, eng Engine, logger engine.Logger, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Coordinator{
		probe:    probe,
		engine:   eng,
		logger:   logger,
		interval: interval,
		inflight: make(map[string]struct{}),
	}
}

// Online reports the last observed connectivity state.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// Start begins probing in the background. It probes once synchronously so
// callers observe a settled state immediately after Start returns.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.Check(ctx)

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Check(ctx)
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
}

// Check probes once and runs the recovery sequence on an offline-to-online
// transition. Exposed so a manual sync can force a probe without waiting
// for the next tick.
func (c *Coordinator) Check(ctx context.Context) bool {
	online := c.probe.Online(ctx)

	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()

	if online && !wasOnline {
		c.logger.Info("connectivity restored")
		c.recover(ctx)
	} else if !online && wasOnline {
		c.logger.Info("connectivity lost")
	}
	return online
}

// recover flushes the queue first so refreshed snapshots already include
// the replayed changes.
func (c *Coordinator) recover(ctx context.Context) {
	result, err := c.engine.FlushQueue(ctx)
	if err != nil {
		c.logger.Error("queue flush failed", "error", err)
	} else if result.Applied > 0 || result.Discarded > 0 {
		c.logger.Info("queue flushed",
			"applied", result.Applied,
			"discarded", result.Discarded,
			"remaining", result.Remaining)
	}

	jobs, err := c.engine.TrackedJobs()
	if err != nil {
		c.logger.Error("listing tracked jobs", "error", err)
		return
	}
	for _, jobID := range jobs {
		c.refresh(ctx, jobID)
	}
}

func (c *Coordinator) refresh(ctx context.Context, jobID string) {
	c.mu.Lock()
	if _, busy := c.inflight[jobID]; busy {
		c.mu.Unlock()
		return
	}
	c.inflight[jobID] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, jobID)
		c.mu.Unlock()
	}()

	if _, err := c.engine.Refresh(ctx, jobID); err != nil {
		c.logger.Warn("refresh failed", "job", jobID, "error", err)
	}
}
