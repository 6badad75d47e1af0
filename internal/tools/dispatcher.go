package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/clarencelabs/kingfisher/internal/telemetry"
)

// Completion reports one finished tool invocation.
type Completion struct {
	Name   string
	Result Result
}

// Dispatcher runs a batch of named tools concurrently with per-call timeouts
// and retries. One tool's failure never cancels or delays the others; every
// requested tool reports exactly once.
type Dispatcher struct {
	tools   map[string]Tool
	policy  RetryPolicy
	timeout time.Duration
	logger  *log.Logger
}

// NewDispatcher registers the given tools. timeout bounds each attempt.
func NewDispatcher(registered []Tool, policy RetryPolicy, timeout time.Duration) *Dispatcher {
	m := make(map[string]Tool, len(registered))
	for _, t := range registered {
		m[t.Name()] = t
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	return &Dispatcher{
		tools:   m,
		policy:  policy,
		timeout: timeout,
		logger:  log.New(log.Writer(), "[TOOLS] ", log.LstdFlags),
	}
}

// Dispatch launches one invocation per requested tool name, excluding
// "images" which the image chain owns. The returned channel delivers each
// completion as it happens and closes once every tool has reported.
func (d *Dispatcher) Dispatch(ctx context.Context, names []string, args Args) <-chan Completion {
	var wanted []string
	for _, n := range names {
		if n != NameImages {
			wanted = append(wanted, n)
		}
	}

	out := make(chan Completion, len(wanted))
	var wg sync.WaitGroup
	for _, name := range wanted {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			started := time.Now()
			result := d.run(ctx, name, args)
			telemetry.ObserveTool(name, time.Since(started))
			out <- Completion{Name: name, Result: result}
		}(name)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Gather folds a completion stream into a result map, fully populated for
// every requested tool.
func Gather(ch <-chan Completion) map[string]Result {
	out := make(map[string]Result)
	for c := range ch {
		out[c.Name] = c.Result
	}
	return out
}

// run applies the retry policy around one tool. Timeouts and errors are
// retried with exponential backoff until attempts are exhausted, then
// converted to an Err result.
func (d *Dispatcher) run(ctx context.Context, name string, args Args) Result {
	tool, ok := d.tools[name]
	if !ok {
		return Errf(fmt.Sprintf("unknown tool: %s", name))
	}

	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		data, err := tool.Call(attemptCtx, args)
		cancel()
		if err == nil {
			return Ok(data)
		}
		lastErr = err
		d.logger.Printf("tool %s attempt %d/%d failed: %v", name, attempt, d.policy.MaxAttempts, err)

		if attempt == d.policy.MaxAttempts {
			break
		}
		select {
		case <-time.After(d.policy.Delay(attempt)):
		case <-ctx.Done():
			return Errf(fmt.Sprintf("tool %s canceled: %v", name, ctx.Err()))
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return Errf(fmt.Sprintf("tool %s timed out after %s (%d attempts)", name, d.timeout, d.policy.MaxAttempts))
	}
	return Errf(fmt.Sprintf("tool %s failed after %d attempts: %v", name, d.policy.MaxAttempts, lastErr))
}
