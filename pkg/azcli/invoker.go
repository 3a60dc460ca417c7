package azcli

import (
	"bytes"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// DefaultCommand is the external CLI wrapped by this package.
const DefaultCommand = "az"

// maxBufferSize caps captured stdout/stderr at 10MB each to prevent memory
// exhaustion from chatty commands.
const maxBufferSize = 10 * 1024 * 1024

// terminateGrace is how long Terminate waits for the process group to exit
// after SIGTERM before escalating to SIGKILL.
const terminateGrace = 500 * time.Millisecond

// limitedBuffer wraps bytes.Buffer with a size limit
type limitedBuffer struct {
	bytes.Buffer
	limit int
}

func (lb *limitedBuffer) Write(p []byte) (n int, err error) {
	if lb.Len()+len(p) > lb.limit {
		remaining := lb.limit - lb.Len()
		if remaining > 0 {
			return lb.Buffer.Write(p[:remaining])
		}
		return len(p), nil // Pretend we wrote it all
	}
	return lb.Buffer.Write(p)
}

// Output holds the captured streams and exit status of one process run.
type Output struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Handle represents one spawned external process.
type Handle interface {
	// Wait blocks until the process exits and returns its captured output.
	// A non-zero exit is reported through Output.ExitCode, not as an error.
	Wait() (Output, error)
	// Terminate signals the process group to stop. Calling Terminate after
	// the process has exited is a no-op.
	Terminate()
}

// Invoker spawns external processes. It is a dumb leaf: no retry or timeout
// logic lives here.
type Invoker interface {
	Spawn(args []string) (Handle, error)
}

// SystemInvoker implements Invoker using os/exec.
type SystemInvoker struct {
	// Command is the binary to invoke. Empty means DefaultCommand.
	Command string
}

// Spawn starts one external process with the given arguments.
func (si *SystemInvoker) Spawn(args []string) (Handle, error) {
	name := si.Command
	if name == "" {
		name = DefaultCommand
	}

	cmd := exec.Command(name, args...)

	// Own process group so Terminate can signal child processes too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := &limitedBuffer{limit: maxBufferSize}
	stderr := &limitedBuffer{limit: maxBufferSize}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: name, Err: err}
	}

	return &systemHandle{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// systemHandle wraps a started exec.Cmd.
type systemHandle struct {
	cmd    *exec.Cmd
	stdout *limitedBuffer
	stderr *limitedBuffer

	mu     sync.Mutex
	exited bool
}

func (h *systemHandle) Wait() (Output, error) {
	err := h.cmd.Wait()

	h.mu.Lock()
	h.exited = true
	h.mu.Unlock()

	out := Output{
		Stdout: h.stdout.String(),
		Stderr: h.stderr.String(),
	}

	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			out.ExitCode = exitError.ExitCode()
			return out, nil
		}
		out.ExitCode = -1
		return out, err
	}

	out.ExitCode = 0
	return out, nil
}

func (h *systemHandle) Terminate() {
	h.mu.Lock()
	if h.exited || h.cmd.Process == nil {
		h.mu.Unlock()
		return
	}
	pid := h.cmd.Process.Pid
	h.mu.Unlock()

	// Signal the whole process group so child processes go too
	syscall.Kill(-pid, syscall.SIGTERM)

	// A process that traps SIGTERM must not hold its slot for its full
	// natural runtime; escalate once the grace period passes
	time.AfterFunc(terminateGrace, func() {
		h.mu.Lock()
		exited := h.exited
		h.mu.Unlock()
		if !exited {
			syscall.Kill(-pid, syscall.SIGKILL)
		}
	})
}
