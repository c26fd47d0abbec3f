// Package executor runs external pipeline tools as managed subprocesses.
// It drains both output streams concurrently, forwards every line to the
// structured logger, and reports a terminal outcome that distinguishes
// failure, timeout and cancellation.
package executor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the terminal status of one executed command.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Command specifies an external command to run.
type Command struct {
	// Argv is the program and its arguments.
	Argv []string
	// Dir is the working directory (empty for the current directory).
	Dir string
	// Env holds extra KEY=VALUE entries appended to the parent environment.
	Env []string
}

// Outcome reports how a command terminated. StdoutTail and StderrTail hold
// the last lines of each stream for summaries and test-result parsing; the
// full streams go to the logger as they arrive.
type Outcome struct {
	Status     Status
	ExitCode   int
	Duration   time.Duration
	StdoutTail []string
	StderrTail []string
}

// Succeeded reports whether the command exited cleanly.
func (o Outcome) Succeeded() bool { return o.Status == StatusSucceeded }

// Config holds executor configuration.
type Config struct {
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Timeout bounds each command's runtime (0 for no limit).
	Timeout time.Duration
	// GracePeriod is how long a terminated child may run before it is
	// force-killed (default 10s).
	GracePeriod time.Duration
	// TailLines bounds the per-stream tail kept in the outcome (default 50).
	TailLines int
}

// Executor spawns external commands one at a time. It is stateless between
// calls and safe for concurrent use.
type Executor struct {
	logger      *slog.Logger
	timeout     time.Duration
	gracePeriod time.Duration
	tailLines   int
}

// New creates an executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * time.Second
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 50
	}
	return &Executor{
		logger:      logger,
		timeout:     cfg.Timeout,
		gracePeriod: cfg.GracePeriod,
		tailLines:   cfg.TailLines,
	}
}

// Execute runs one command to completion. Both output streams are drained
// line-by-line and forwarded to the logger tagged with the step identifier
// and stream name; per-stream line order is preserved and all buffered
// output is drained before Execute returns, even when the child is killed.
//
// Cancelling ctx terminates the child's process group (SIGTERM, then SIGKILL
// after the grace period) and yields StatusCancelled; exceeding the configured
// timeout yields StatusTimedOut through the same termination sequence.
func (x *Executor) Execute(ctx context.Context, stepID string, command Command) Outcome {
	start := time.Now()

	if len(command.Argv) == 0 {
		x.logger.Error("empty command", "step", stepID)
		return Outcome{Status: StatusFailed, ExitCode: -1, Duration: time.Since(start)}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if x.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command.Argv[0], command.Argv[1:]...)
	cmd.Dir = command.Dir
	cmd.Env = append(os.Environ(), command.Env...)

	// The child runs in its own process group so termination reaches the
	// whole tree. Grandchildren inherit the output pipes; one left alive
	// would keep the drain goroutines blocked on open pipes past the grace
	// period.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	waitDone := make(chan struct{})
	cmd.Cancel = func() error {
		go func() {
			select {
			case <-waitDone:
			case <-time.After(x.gracePeriod):
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		}()
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = x.gracePeriod

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return x.spawnFailure(stepID, start, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return x.spawnFailure(stepID, start, err)
	}

	x.logger.Info("starting command", "step", stepID, "argv", command.Argv, "dir", command.Dir)

	if err := cmd.Start(); err != nil {
		return x.spawnFailure(stepID, start, err)
	}

	outTail := newTail(x.tailLines)
	errTail := newTail(x.tailLines)

	// One reader per stream; both must hit end-of-stream before Wait, which
	// closes the pipes.
	var g errgroup.Group
	g.Go(func() error {
		return x.drain(stdout, stepID, "stdout", outTail)
	})
	g.Go(func() error {
		return x.drain(stderr, stepID, "stderr", errTail)
	})
	_ = g.Wait()

	waitErr := cmd.Wait()
	close(waitDone)
	duration := time.Since(start)

	outcome := Outcome{
		Duration:   duration,
		StdoutTail: outTail.lines(),
		StderrTail: errTail.lines(),
	}

	switch {
	case ctx.Err() != nil:
		outcome.Status = StatusCancelled
		outcome.ExitCode = exitCode(waitErr)
		x.logger.Warn("command cancelled", "step", stepID, "duration", duration)
	case runCtx.Err() != nil:
		outcome.Status = StatusTimedOut
		outcome.ExitCode = exitCode(waitErr)
		x.logger.Warn("command timed out", "step", stepID, "timeout", x.timeout)
	case waitErr == nil:
		outcome.Status = StatusSucceeded
		x.logger.Info("command succeeded", "step", stepID, "duration", duration)
	default:
		outcome.Status = StatusFailed
		outcome.ExitCode = exitCode(waitErr)
		x.logger.Error("command failed",
			"step", stepID, "exit_code", outcome.ExitCode, "duration", duration)
	}

	return outcome
}

func (x *Executor) spawnFailure(stepID string, start time.Time, err error) Outcome {
	x.logger.Error("failed to start command", "step", stepID, "error", err)
	return Outcome{
		Status:     StatusFailed,
		ExitCode:   -1,
		Duration:   time.Since(start),
		StderrTail: []string{err.Error()},
	}
}

// drain reads one stream to end-of-stream, forwarding each line in order.
func (x *Executor) drain(r io.Reader, stepID, stream string, t *tail) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		t.add(line)
		x.logger.Info(line, "step", stepID, "stream", stream)
	}
	return scanner.Err()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// tail keeps the last n lines of a stream. It is written by a single drain
// goroutine and read only after that goroutine finishes.
type tail struct {
	max   int
	buf   []string
	start int
	full  bool
}

func newTail(max int) *tail {
	return &tail{max: max, buf: make([]string, max)}
}

func (t *tail) add(line string) {
	t.buf[t.start] = line
	t.start = (t.start + 1) % t.max
	if t.start == 0 {
		t.full = true
	}
}

func (t *tail) lines() []string {
	if !t.full {
		out := make([]string, t.start)
		copy(out, t.buf[:t.start])
		return out
	}
	out := make([]string, 0, t.max)
	out = append(out, t.buf[t.start:]...)
	out = append(out, t.buf[:t.start]...)
	return out
}
