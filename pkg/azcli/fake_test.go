package azcli

import (
	"sync"
	"time"
)

// fakeInvoker is a test double for Invoker that simulates delays, failures
// and timeouts deterministically without spawning real processes.
type fakeInvoker struct {
	mu     sync.Mutex
	spawns int

	Delay    time.Duration
	ExitCode int
	Stdout   string
	Stderr   string
	SpawnErr error

	// ExitFor, when set, decides the exit code per invocation from its
	// arguments and overrides ExitCode.
	ExitFor func(args []string) int
}

func (f *fakeInvoker) Spawn(args []string) (Handle, error) {
	f.mu.Lock()
	f.spawns++
	f.mu.Unlock()

	if f.SpawnErr != nil {
		return nil, &SpawnError{Command: "fake", Err: f.SpawnErr}
	}

	code := f.ExitCode
	if f.ExitFor != nil {
		code = f.ExitFor(args)
	}

	return &fakeHandle{
		delay: f.Delay,
		out:   Output{ExitCode: code, Stdout: f.Stdout, Stderr: f.Stderr},
		term:  make(chan struct{}),
	}, nil
}

// Spawns returns how many times Spawn was called.
func (f *fakeInvoker) Spawns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spawns
}

type fakeHandle struct {
	delay time.Duration
	out   Output
	term  chan struct{}
	once  sync.Once
}

func (h *fakeHandle) Wait() (Output, error) {
	select {
	case <-time.After(h.delay):
		return h.out, nil
	case <-h.term:
		return Output{ExitCode: -1}, nil
	}
}

func (h *fakeHandle) Terminate() {
	h.once.Do(func() {
		close(h.term)
	})
}
