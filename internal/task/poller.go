// Package task drives a submitted generation job to its terminal state and
// turns a successful result into local artifacts.
package task

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blacktop/acestep/internal/api"
)

// State is the client-side view of a job's lifecycle.
type State int

const (
	Submitted State = iota
	Processing
	Succeeded
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Submitted:
		return "submitted"
	case Processing:
		return "processing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome is the terminal result of a Wait. Failed and TimedOut are data,
// not errors: the service answered, the answer just was not success.
type Outcome struct {
	TaskID        string
	State         State
	Result        string // raw inner-JSON result payload, set on Succeeded
	FailureReason string // server-reported reason, set on Failed
	Polls         int
}

// PollError reports an exhausted transient-retry budget. The task keeps
// running remotely; the id is carried so the user can query it later.
type PollError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("polling task %s failed after %d attempts: %v", e.TaskID, e.Attempts, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// StatusQuerier is the one client operation the poller needs.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, ids []string) (map[string]api.TaskState, error)
}

const (
	defaultMaxRetries = 3
)

// Poller queries a task's status at a fixed interval until the task settles
// or the wall-clock budget runs out. Cancelling the context stops it early.
type Poller struct {
	Client     StatusQuerier
	Interval   time.Duration // fixed delay between polls
	MaxWait    time.Duration // wall-clock budget
	MaxRetries int           // consecutive transient failures tolerated

	// OnPoll, when set, observes every completed status query.
	OnPoll func(attempt int, state State)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Wait polls taskID until a terminal outcome. Transient transport errors are
// retried up to MaxRetries consecutive times before surfacing as *PollError.
// Context cancellation stops polling cleanly and leaves the remote job
// alone; there is no cancel endpoint to call.
func (p *Poller) Wait(ctx context.Context, taskID string) (Outcome, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	maxWait := p.MaxWait
	if maxWait <= 0 {
		maxWait = 10 * time.Minute
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	now := p.now
	if now == nil {
		now = time.Now
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	deadline := now().Add(maxWait)
	attempt := 0
	failures := 0

	for {
		attempt++
		states, err := p.Client.QueryStatus(ctx, []string{taskID})
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{TaskID: taskID, Polls: attempt}, ctx.Err()
			}
			failures++
			log.Debug("poll attempt failed", "task", taskID, "attempt", attempt, "failures", failures, "error", err)
			if failures > maxRetries {
				return Outcome{TaskID: taskID, Polls: attempt}, &PollError{TaskID: taskID, Attempts: attempt, Err: err}
			}
		} else {
			st, ok := states[taskID]
			if !ok {
				// The service answered but not about our task; treat it
				// like a transient miss rather than a terminal verdict.
				failures++
				log.Debug("task missing from status response", "task", taskID, "attempt", attempt, "failures", failures)
				if failures > maxRetries {
					return Outcome{TaskID: taskID, Polls: attempt}, &PollError{TaskID: taskID, Attempts: attempt, Err: fmt.Errorf("task %s missing from status response", taskID)}
				}
			} else {
				failures = 0
				switch st.Status {
				case api.StatusSuccess:
					p.notify(attempt, Succeeded)
					return Outcome{TaskID: taskID, State: Succeeded, Result: st.Result, Polls: attempt}, nil
				case api.StatusFailed:
					p.notify(attempt, Failed)
					return Outcome{TaskID: taskID, State: Failed, FailureReason: st.Result, Polls: attempt}, nil
				default:
					p.notify(attempt, Processing)
				}
			}
		}

		if !now().Before(deadline) {
			return Outcome{TaskID: taskID, State: TimedOut, Polls: attempt}, nil
		}
		if err := sleep(ctx, interval); err != nil {
			return Outcome{TaskID: taskID, Polls: attempt}, err
		}
	}
}

func (p *Poller) notify(attempt int, state State) {
	if p.OnPoll != nil {
		p.OnPoll(attempt, state)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
