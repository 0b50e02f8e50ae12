package shutdown

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCoordinator_PhasesRunInOrder(t *testing.T) {
	coord := NewCoordinator(5*time.Second, zap.NewNop())

	var order []Phase
	var mu sync.Mutex

	for _, phase := range []Phase{PhaseDrain, PhaseWorkers, PhaseClose} {
		p := phase
		coord.Register(p, p.String(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return nil
		})
	}

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	expected := []Phase{PhaseDrain, PhaseWorkers, PhaseClose}
	if len(order) != len(expected) {
		t.Fatalf("expected %d phases, got %d", len(expected), len(order))
	}
	for i, p := range expected {
		if order[i] != p {
			t.Errorf("phase %d: expected %v, got %v", i, p, order[i])
		}
	}
}

func TestCoordinator_HooksInPhaseRunConcurrently(t *testing.T) {
	coord := NewCoordinator(5*time.Second, zap.NewNop())

	var concurrent int32
	var maxConcurrent int32

	for i := 0; i < 3; i++ {
		coord.Register(PhaseWorkers, "worker", func(ctx context.Context) error {
			current := atomic.AddInt32(&concurrent, 1)
			for {
				max := atomic.LoadInt32(&maxConcurrent)
				if current <= max || atomic.CompareAndSwapInt32(&maxConcurrent, max, current) {
					break
				}
			}
			time.Sleep(50 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
			return nil
		})
	}

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if atomic.LoadInt32(&maxConcurrent) < 2 {
		t.Errorf("expected concurrent execution, maxConcurrent = %d", maxConcurrent)
	}
}

func TestCoordinator_FailingHookDoesNotBlockTeardown(t *testing.T) {
	coord := NewCoordinator(5*time.Second, zap.NewNop())

	coord.Register(PhaseDrain, "failing", func(ctx context.Context) error {
		return errors.New("listener close failed")
	})

	closed := false
	coord.Register(PhaseClose, "db", func(ctx context.Context) error {
		closed = true
		return nil
	})

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !closed {
		t.Error("later phases should still run after a hook failure")
	}
}

func TestCoordinator_RespectsTimeout(t *testing.T) {
	coord := NewCoordinator(100*time.Millisecond, zap.NewNop())

	coord.Register(PhaseDrain, "slow", func(ctx context.Context) error {
		select {
		case <-time.After(1 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	coord.Run(context.Background())

	if time.Since(start) > 500*time.Millisecond {
		t.Error("teardown should have stopped at the timeout")
	}
}

func TestCoordinator_RunsOnlyOnce(t *testing.T) {
	coord := NewCoordinator(0, zap.NewNop())

	var callCount int32
	coord.Register(PhaseWorkers, "ticker", func(ctx context.Context) error {
		atomic.AddInt32(&callCount, 1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coord.Run(context.Background())
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&callCount) != 1 {
		t.Errorf("expected the hook to run once, ran %d times", callCount)
	}
}

func TestCoordinator_Draining(t *testing.T) {
	coord := NewCoordinator(0, zap.NewNop())

	if coord.Draining() {
		t.Error("coordinator should not report draining before Run")
	}

	select {
	case <-coord.Begun():
		t.Error("Begun channel should stay open before Run")
	default:
	}

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !coord.Draining() {
		t.Error("coordinator should report draining after Run")
	}
	select {
	case <-coord.Begun():
	default:
		t.Error("Begun channel should be closed after Run")
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{PhaseDrain, "drain"},
		{PhaseWorkers, "workers"},
		{PhaseClose, "close"},
		{Phase(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.phase.String(); got != tt.expected {
				t.Errorf("Phase.String() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
