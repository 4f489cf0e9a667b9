package reconstruct

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrTimeout is returned when a pipeline runs past the executor timeout.
var ErrTimeout = errors.New("pipeline timed out")

// DefaultTimeout bounds a single pipeline run.
const DefaultTimeout = 5 * time.Minute

// Executor runs pipelines with a timeout.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an Executor. A non-positive timeout uses
// DefaultTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{timeout: timeout}
}

// Execute runs p with req on stdin and parses its stdout as a Response.
// The pipeline runs in its own directory.
func (e *Executor) Execute(ctx context.Context, p *Pipeline, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Executable)
	cmd.Dir = p.Path
	cmd.Stdin = bytes.NewReader(reqJSON)
	// Children of a killed pipeline may hold stdout open.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err != nil {
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("pipeline %s failed: %w, stderr: %s", p.Manifest.Name, err, s)
		}
		return nil, fmt.Errorf("pipeline %s failed: %w", p.Manifest.Name, err)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("parse pipeline response: %w, stdout: %s", err, stdout.String())
	}
	return &resp, nil
}
