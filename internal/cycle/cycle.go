package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrCycleExhausted = errors.New("maximum attempts reached without success")
	ErrEmptyPlan      = errors.New("plan has no steps")
)

// State is a position in the controller's state machine.
type State string

const (
	StateIdle         State = "idle"
	StateRunning      State = "running"
	StateRetryPending State = "retry_pending"
	StateSuccess      State = "success"
	StateExhausted    State = "exhausted"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeExhausted Outcome = "exhausted"
)

// Step is a named unit of work. Any returned error fails the attempt.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// Plan is the ordered step list of one cycle. LastResort runs once after the
// attempts are exhausted; when empty it defaults to the final step alone.
type Plan struct {
	Steps      []Step
	LastResort []Step
}

func (p Plan) lastResort() []Step {
	if len(p.LastResort) > 0 {
		return p.LastResort
	}
	return p.Steps[len(p.Steps)-1:]
}

// AttemptState is the controller's counter pair plus the last cycle verdict.
type AttemptState struct {
	Current int
	Max     int
	Last    Verdict
}

// Verdict describes how the most recent cycle ended.
type Verdict struct {
	Kind   VerdictKind
	Step   string
	Reason error
}

type VerdictKind string

const (
	VerdictNone      VerdictKind = ""
	VerdictSuccess   VerdictKind = "success"
	VerdictRetryable VerdictKind = "retryable_failure"
	VerdictExhausted VerdictKind = "exhausted_failure"
)

// Transition is reported to an Observer on every state change.
type Transition struct {
	From    State
	To      State
	Step    string
	Attempt AttemptState
	Err     error
}

type Observer func(Transition)

// AttemptFailure records the step that ended an attempt.
type AttemptFailure struct {
	Attempt int
	Step    string
	Err     error
}

type Result struct {
	Outcome   Outcome
	Attempts  int
	Failures  []AttemptFailure
	Salvaged  bool
	LastError error
}

// Err is nil on success and wraps ErrCycleExhausted otherwise.
func (r *Result) Err() error {
	if r.Outcome == OutcomeSuccess {
		return nil
	}
	if r.LastError != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrCycleExhausted, r.Attempts, r.LastError)
	}
	return fmt.Errorf("%w after %d attempts", ErrCycleExhausted, r.Attempts)
}

type Controller struct {
	maxAttempts int
	logger      *slog.Logger
	observer    Observer
	pause       func(ctx context.Context) error
}

type Options struct {
	// Observer receives every state transition.
	Observer Observer
	// Pause runs before each restart.
	Pause  func(ctx context.Context) error
	Logger *slog.Logger
}

func NewController(maxAttempts int, opts Options) *Controller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Controller{
		maxAttempts: maxAttempts,
		logger:      opts.Logger.With("component", "cycle"),
		observer:    opts.Observer,
		pause:       opts.Pause,
	}
}

func (c *Controller) MaxAttempts() int {
	return c.maxAttempts
}

// Run drives plan until one cycle completes every step or the attempts run
// out. Step failures never escape: the returned error is only set for an
// empty plan or a cancelled context. Exhaustion is reported by Result.
func (c *Controller) Run(ctx context.Context, plan Plan) (*Result, error) {
	if len(plan.Steps) == 0 {
		return nil, ErrEmptyPlan
	}

	state := AttemptState{Max: c.maxAttempts}
	res := &Result{}
	current := StateIdle

	move := func(to State, step string, err error) {
		if c.observer != nil {
			c.observer(Transition{From: current, To: to, Step: step, Attempt: state, Err: err})
		}
		current = to
	}

	for {
		state.Current++
		res.Attempts = state.Current
		c.logger.Info("starting attempt", "attempt", state.Current, "max_attempts", state.Max)

		failedStep, err := c.runSteps(ctx, plan.Steps, &state, move)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}

		if err == nil {
			state.Last = Verdict{Kind: VerdictSuccess}
			move(StateSuccess, "", nil)
			res.Outcome = OutcomeSuccess
			c.logger.Info("cycle succeeded", "attempt", state.Current)
			return res, nil
		}

		res.Failures = append(res.Failures, AttemptFailure{Attempt: state.Current, Step: failedStep, Err: err})
		res.LastError = err
		state.Last = Verdict{Kind: VerdictRetryable, Step: failedStep, Reason: err}
		move(StateRetryPending, failedStep, err)

		c.logger.Warn("attempt failed",
			"attempt", state.Current,
			"max_attempts", state.Max,
			"step", failedStep,
			"error", err)

		if state.Current >= state.Max {
			break
		}

		if c.pause != nil {
			if err := c.pause(ctx); err != nil {
				return res, err
			}
		}
		c.logger.Info("restarting from first step", "next_attempt", state.Current+1)
	}

	state.Last = Verdict{Kind: VerdictExhausted, Reason: res.LastError}
	move(StateExhausted, "", res.LastError)
	res.Outcome = OutcomeExhausted

	c.logger.Warn("attempts exhausted, running last resort", "attempts", state.Current)
	failedStep, err := c.runSteps(ctx, plan.lastResort(), &state, nil)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}
	if err != nil {
		c.logger.Warn("last resort failed", "step", failedStep, "error", err)
		return res, nil
	}

	res.Salvaged = true
	c.logger.Info("last resort succeeded")
	return res, nil
}

func (c *Controller) runSteps(ctx context.Context, steps []Step, state *AttemptState, move func(State, string, error)) (string, error) {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return step.Name, err
		}
		if move != nil {
			move(StateRunning, step.Name, nil)
		}

		c.logger.Debug("running step", "step", step.Name, "attempt", state.Current)
		if err := step.Run(ctx); err != nil {
			return step.Name, fmt.Errorf("%s: %w", step.Name, err)
		}
	}
	return "", nil
}
