// Package shutdown coordinates ordered teardown of the server: the
// HTTP listener drains first, then background workers such as the
// automation ticker stop, then shared resources like the database
// pool close.
package shutdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase orders teardown. Hooks in the same phase stop concurrently;
// phases run strictly in declaration order.
type Phase int

const (
	// PhaseDrain stops intake: the HTTP server finishes in-flight
	// requests and refuses new ones.
	PhaseDrain Phase = iota
	// PhaseWorkers stops background work such as the automation ticker.
	PhaseWorkers
	// PhaseClose releases shared resources. The database pool goes here
	// so earlier phases can still flush writes.
	PhaseClose
)

func (p Phase) String() string {
	switch p {
	case PhaseDrain:
		return "drain"
	case PhaseWorkers:
		return "workers"
	case PhaseClose:
		return "close"
	default:
		return "unknown"
	}
}

// Hook is a named stop function registered with the coordinator.
type Hook struct {
	Name string
	Stop func(ctx context.Context) error
}

// DefaultTimeout bounds the whole teardown sequence when no explicit
// timeout is configured.
const DefaultTimeout = 30 * time.Second

// Coordinator runs registered hooks phase by phase when the process
// receives a stop signal.
type Coordinator struct {
	mu      sync.Mutex
	hooks   map[Phase][]Hook
	timeout time.Duration
	logger  *zap.Logger

	begun chan struct{}
	once  sync.Once
	done  chan struct{}
}

// NewCoordinator creates a coordinator. A non-positive timeout falls
// back to DefaultTimeout.
func NewCoordinator(timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		hooks:   make(map[Phase][]Hook),
		timeout: timeout,
		logger:  logger,
		begun:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Register adds a stop hook to the given phase.
func (c *Coordinator) Register(phase Phase, name string, stop func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks[phase] = append(c.hooks[phase], Hook{Name: name, Stop: stop})
	c.logger.Debug("registered shutdown hook",
		zap.String("hook", name),
		zap.String("phase", phase.String()),
	)
}

// Run executes the teardown sequence. Safe to call from multiple
// goroutines; only the first call starts the hooks, the rest block on
// the same completion. Run returns early if ctx is cancelled, but the
// teardown keeps going with its own timeout.
func (c *Coordinator) Run(ctx context.Context) error {
	c.once.Do(func() {
		close(c.begun)
		go c.teardown()
	})

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Begun returns a channel closed once teardown has started. The
// readiness endpoint watches it to take the instance out of rotation
// while requests drain.
func (c *Coordinator) Begun() <-chan struct{} {
	return c.begun
}

// Draining reports whether teardown has started.
func (c *Coordinator) Draining() bool {
	select {
	case <-c.begun:
		return true
	default:
		return false
	}
}

func (c *Coordinator) teardown() {
	defer close(c.done)

	// Teardown gets its own timeout so a cancelled caller context
	// cannot cut the drain short.
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	c.logger.Info("shutting down", zap.Duration("timeout", c.timeout))

	failed := 0
	for _, phase := range []Phase{PhaseDrain, PhaseWorkers, PhaseClose} {
		c.mu.Lock()
		hooks := c.hooks[phase]
		c.mu.Unlock()

		if len(hooks) == 0 {
			continue
		}

		c.logger.Info("shutdown phase",
			zap.String("phase", phase.String()),
			zap.Int("hooks", len(hooks)),
		)

		failed += c.stopPhase(ctx, phase, hooks)

		if ctx.Err() != nil {
			c.logger.Error("shutdown timeout exceeded",
				zap.String("phase", phase.String()),
				zap.Error(ctx.Err()),
			)
			return
		}
	}

	if failed > 0 {
		c.logger.Error("shutdown completed with errors", zap.Int("failed_hooks", failed))
		return
	}
	c.logger.Info("shutdown complete")
}

// stopPhase stops every hook in a phase concurrently and returns the
// number of hooks that failed.
func (c *Coordinator) stopPhase(ctx context.Context, phase Phase, hooks []Hook) int {
	var wg sync.WaitGroup
	var failed int
	var mu sync.Mutex

	for _, h := range hooks {
		wg.Add(1)
		go func(h Hook) {
			defer wg.Done()

			start := time.Now()
			if err := h.Stop(ctx); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				c.logger.Error("shutdown hook failed",
					zap.String("hook", h.Name),
					zap.String("phase", phase.String()),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				return
			}

			c.logger.Debug("shutdown hook done",
				zap.String("hook", h.Name),
				zap.String("phase", phase.String()),
				zap.Duration("duration", time.Since(start)),
			)
		}(h)
	}

	wg.Wait()
	return failed
}
