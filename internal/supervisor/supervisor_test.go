package supervisor

import (
	"context"
	"testing"
	"time"
)

func TestSpawnAndExitCodeCollection(t *testing.T) {
	s := New()

	if _, err := s.Spawn("node1", "sh", "-c", "exit 0"); err != nil {
		t.Fatalf("Spawn (clean exit): %v", err)
	}
	if _, err := s.Spawn("node1", "sh", "-c", "exit 3"); err != nil {
		t.Fatalf("Spawn (nonzero exit): %v", err)
	}

	codes := s.Run(context.Background(), 0, waitForExit(t, s))

	if len(codes) != 2 {
		t.Fatalf("expected 2 exit codes, got %d: %+v", len(codes), codes)
	}
	var sawZero, sawThree bool
	for _, code := range codes {
		switch code {
		case 0:
			sawZero = true
		case 3:
			sawThree = true
		}
	}
	if !sawZero || !sawThree {
		t.Fatalf("expected exit codes 0 and 3, got %+v", codes)
	}
}

// waitForExit returns a channel that closes once every child in s has
// stopped being active, standing in for the "data-source terminating"
// shutdown trigger in this test.
func waitForExit(t *testing.T, s *Supervisor) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			allDone := true
			for _, c := range s.children {
				if c.Active() {
					allDone = false
				}
			}
			if allDone {
				close(done)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		close(done)
	}()
	return done
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New()
	if _, err := s.Spawn("node1", "sh", "-c", "sleep 30"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan map[string]int, 1)
	go func() { done <- s.Run(ctx, 0, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case codes := <-done:
		if len(codes) != 1 {
			t.Fatalf("expected 1 child, got %+v", codes)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after context cancel and graceful termination")
	}
}

// TestLogTransitionsReportsExitOnce reproduces a child that has
// already exited by the time logTransitions first runs, then calls it
// again on a later tick: the child must be marked reported after the
// first call and must not be reported a second time.
func TestLogTransitionsReportsExitOnce(t *testing.T) {
	s := New()
	if _, err := s.Spawn("node1", "sh", "-c", "exit 0"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.children[0].Active() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.children[0].Active() {
		t.Fatal("child did not exit in time")
	}

	s.logTransitions()
	if !s.reported[s.children[0]] {
		t.Fatal("expected child to be marked reported after first logTransitions call")
	}

	// A second call must be a no-op for this child: reported stays
	// true and nothing else changes.
	s.logTransitions()
	if !s.reported[s.children[0]] {
		t.Fatal("expected child to remain marked reported after second logTransitions call")
	}
}

func TestRunStopsOnDuration(t *testing.T) {
	s := New()
	if _, err := s.Spawn("node1", "sh", "-c", "sleep 30"); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	done := make(chan map[string]int, 1)
	go func() { done <- s.Run(context.Background(), 50*time.Millisecond, nil) }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop after duration expired")
	}
}
