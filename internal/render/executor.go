package render

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// maxStderrLineBytes bounds a single scanned stderr line. Encoder
// diagnostics can be large; anything beyond this is a runaway line.
const maxStderrLineBytes = 256 * 1024

// Executor abstracts encoder invocation for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStderrLine func(string)) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStderrLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	// Stdout stays attached to the null device: ffmpeg reports on stderr,
	// and whole-buffer capture of either stream is off the table.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxStderrLineBytes)
		for scanner.Scan() {
			if onStderrLine != nil {
				onStderrLine(scanner.Text())
			}
		}
		scanErr = scanner.Err()
	}()

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan stderr: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

// lineRing keeps the most recent stderr lines for error reporting.
type lineRing struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newLineRing(capacity int) *lineRing {
	if capacity <= 0 {
		capacity = 40
	}
	return &lineRing{lines: make([]string, capacity)}
}

func (r *lineRing) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// Tail returns the retained lines in arrival order.
func (r *lineRing) Tail() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	out = append(out, r.lines[:r.next]...)
	return out
}

func (r *lineRing) String() string {
	return strings.Join(r.Tail(), "\n")
}
