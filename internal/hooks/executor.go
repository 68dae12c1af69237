// Package hooks runs operator-configured shell commands when lead events
// occur, e.g. to ping a supervisor channel on every PASS.
package hooks

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 300 * time.Second

	// maxOutput caps how much of a command's output is kept for logging.
	maxOutput = 4 << 10

	// waitDelay bounds how long Execute waits on pipes held open by
	// background children after the shell itself exits or is killed.
	waitDelay = 2 * time.Second
)

// Result describes one hook command run.
type Result struct {
	Command  string
	Output   string
	Duration time.Duration
	TimedOut bool
	Err      error
}

// Execute runs command via "sh -c" with env overlaid on the process
// environment. timeout is clamped to (0, MaxTimeout]; zero means
// DefaultTimeout. Output is stdout and stderr interleaved, trimmed and
// capped at a few KiB.
func Execute(ctx context.Context, command string, timeout time.Duration, env map[string]string) Result {
	timeout = min(timeout, MaxTimeout)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := &cappedBuffer{max: maxOutput}
	cmd := exec.CommandContext(runCtx, "sh", "-c", command) //nolint:gosec // commands come from the operator's hooks file
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(), envList(env)...)

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  command,
		Output:   strings.TrimSpace(out.String()),
		Duration: time.Since(start),
		Err:      err,
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
	}
	return res
}

func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	return list
}

// cappedBuffer keeps the first max bytes written and drops the rest while
// still reporting full writes, so the command never sees EPIPE.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return b.buf.String() + " [truncated]"
	}
	return b.buf.String()
}
