package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/threadrelay/internal/domain"
)

// Default poll budget: five checks, two seconds apart.
const (
	DefaultPollAttempts = 5
	DefaultPollInterval = 2 * time.Second
)

// PollPolicy bounds run polling. There is no backoff: every check is
// preceded by the same Interval.
type PollPolicy struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultPollPolicy returns the standard polling budget.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{MaxAttempts: DefaultPollAttempts, Interval: DefaultPollInterval}
}

func (p PollPolicy) normalized() PollPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollAttempts
	}
	if p.Interval < 0 {
		p.Interval = 0
	}
	return p
}

// Sleeper suspends the calling goroutine between status checks.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper waits on a real timer and wakes early if ctx is done.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// RunDriver submits user text as a run and polls it to an outcome.
type RunDriver struct {
	client      Client
	assistantID string
	policy      PollPolicy
	sleeper     Sleeper
	logger      *slog.Logger
}

// DriverOption customizes a RunDriver.
type DriverOption func(*RunDriver)

// WithPollPolicy overrides the polling budget.
func WithPollPolicy(p PollPolicy) DriverOption {
	return func(d *RunDriver) { d.policy = p.normalized() }
}

// WithSleeper overrides how the driver waits between checks.
func WithSleeper(s Sleeper) DriverOption {
	return func(d *RunDriver) {
		if s != nil {
			d.sleeper = s
		}
	}
}

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *RunDriver) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewRunDriver creates a driver that runs assistantID on submitted threads.
func NewRunDriver(client Client, assistantID string, opts ...DriverOption) *RunDriver {
	d := &RunDriver{
		client:      client,
		assistantID: assistantID,
		policy:      DefaultPollPolicy(),
		sleeper:     TimerSleeper,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "run_driver")
	return d
}

// Submit appends text to the thread and starts a run. Both steps must
// succeed.
func (d *RunDriver) Submit(ctx context.Context, threadID, text string) (string, error) {
	if err := d.client.AppendMessage(ctx, threadID, text); err != nil {
		return "", fmt.Errorf("submit message: %w", err)
	}
	runID, err := d.client.CreateRun(ctx, threadID, d.assistantID)
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	d.logger.Debug("Run submitted", "thread_id", threadID, "run_id", runID)
	return runID, nil
}

// Poll checks the run status up to MaxAttempts times, sleeping Interval
// before each check. Pending statuses keep polling; any other status ends
// the loop. Exhausting the budget yields OutcomeTimedOut while the remote
// run keeps going.
func (d *RunDriver) Poll(ctx context.Context, threadID, runID string) (domain.RunOutcome, error) {
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if err := d.sleeper.Sleep(ctx, d.policy.Interval); err != nil {
			return domain.RunOutcome{}, fmt.Errorf("poll run %s: %w", runID, err)
		}

		status, err := d.client.GetRun(ctx, threadID, runID)
		if err != nil {
			return domain.RunOutcome{}, fmt.Errorf("poll run %s: %w", runID, err)
		}
		d.logger.Debug("Run status", "run_id", runID, "status", status, "attempt", attempt)

		if status.Pending() {
			continue
		}
		if status != domain.RunStatusCompleted {
			return domain.OutcomeFromStatus(status), nil
		}

		text, err := d.latestText(ctx, threadID)
		if err != nil {
			return domain.RunOutcome{}, err
		}
		return domain.RunOutcome{Kind: domain.OutcomeCompleted, Status: status, Text: text}, nil
	}

	d.logger.Warn("Run still pending after poll budget",
		"thread_id", threadID,
		"run_id", runID,
		"attempts", d.policy.MaxAttempts)
	return domain.RunOutcome{Kind: domain.OutcomeTimedOut}, nil
}

func (d *RunDriver) latestText(ctx context.Context, threadID string) (string, error) {
	msg, err := d.client.LatestMessage(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("fetch reply: %w", err)
	}
	return msg.PlainText(), nil
}

// Drive submits text and polls the resulting run to an outcome.
func (d *RunDriver) Drive(ctx context.Context, threadID, text string) (domain.RunOutcome, error) {
	runID, err := d.Submit(ctx, threadID, text)
	if err != nil {
		return domain.RunOutcome{}, err
	}
	outcome, err := d.Poll(ctx, threadID, runID)
	if err != nil {
		return domain.RunOutcome{}, err
	}
	d.logger.Info("Run finished",
		"thread_id", threadID,
		"run_id", runID,
		"outcome", outcome.Kind.String())
	return outcome, nil
}
