package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/coin-collector/internal/collector"
	"github.com/maltedev/coin-collector/internal/cycle"
	"github.com/maltedev/coin-collector/internal/database"
	"github.com/maltedev/coin-collector/internal/events"
)

var (
	ErrRunInProgress = errors.New("a collection run is already in progress")
	ErrRunNotFound   = errors.New("run not found")
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
)

// historyLimit bounds how many finished runs are kept in memory.
const historyLimit = 100

// Run represents a collection run
type Run struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	LoggedIn    bool       `json:"logged_in"`
	Attempts    int        `json:"attempts"`
	Salvaged    bool       `json:"salvaged"`
	Collected   bool       `json:"collected"`
	Country     string     `json:"country,omitempty"`
	Failures    []Failure  `json:"failures,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Failure is the step that ended one attempt.
type Failure struct {
	Attempt int    `json:"attempt"`
	Step    string `json:"step"`
	Error   string `json:"error"`
}

// Runner performs one collection run.
type Runner interface {
	Run(ctx context.Context, observer cycle.Observer) (*collector.Report, error)
	MaxAttempts() int
}

// Recorder persists run history.
type Recorder interface {
	Save(ctx context.Context, run *database.RunRecord) error
}

// Manager runs collections one at a time and keeps their results.
type Manager struct {
	runner    Runner
	publisher events.Publisher
	recorder  Recorder
	logger    *slog.Logger

	mu      sync.Mutex
	runs    map[string]*Run
	active  string
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires a runner to its side channels. publisher and recorder may
// be nil.
func NewManager(runner Runner, publisher events.Publisher, recorder Recorder, logger *slog.Logger) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runner:    runner,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger.With("component", "run_manager"),
		runs:      make(map[string]*Run),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start begins a run in the background. The run outlives ctx's
// cancellation; use Shutdown to stop it.
func (m *Manager) Start(ctx context.Context) (*Run, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	run, err := m.reserve(cancel)
	if err != nil {
		cancel()
		return nil, err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(runCtx, run.ID)
	}()

	return run, nil
}

// Execute performs a run and blocks until it is finished.
func (m *Manager) Execute(ctx context.Context) (*Run, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run, err := m.reserve(cancel)
	if err != nil {
		return nil, err
	}

	m.execute(runCtx, run.ID)
	return m.Get(run.ID)
}

func (m *Manager) reserve(cancel context.CancelFunc) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != "" {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, m.active)
	}

	run := &Run{
		ID:        uuid.New().String(),
		Status:    StatusRunning,
		CreatedAt: time.Now(),
	}
	m.runs[run.ID] = run
	m.active = run.ID
	m.cancels[run.ID] = cancel
	m.prune()

	m.logger.Info("run created", "id", run.ID)
	return copyRun(run), nil
}

func (m *Manager) execute(ctx context.Context, id string) {
	m.publish(ctx, events.NewRunStarted(id, m.runner.MaxAttempts()))
	m.record(ctx, id)

	report, err := m.runner.Run(ctx, func(t cycle.Transition) {
		if t.To == cycle.StateRetryPending {
			m.publish(ctx, events.NewAttemptFailed(id, t.Attempt.Current, t.Step, t.Err))
		}
	})

	m.finish(id, report, err)

	// The run context may be cancelled by now; side channels still get the
	// final state.
	final := context.WithoutCancel(ctx)
	run, _ := m.Get(id)
	m.publish(final, events.NewRunCompleted(id, events.Completion{
		Status:   string(run.Status),
		Attempts: run.Attempts,
		LoggedIn: run.LoggedIn,
		Salvaged: run.Salvaged,
		Country:  run.Country,
		Error:    run.Error,
	}))
	m.record(final, id)
}

func (m *Manager) finish(id string, report *collector.Report, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run := m.runs[id]
	now := time.Now()
	run.CompletedAt = &now

	if report != nil {
		run.LoggedIn = report.LoggedIn
		run.Attempts = report.Attempts
		run.Salvaged = report.Salvaged
		run.Collected = report.Collected()
		if report.ShipTo != nil {
			run.Country = report.ShipTo.Country
		}
		for _, f := range report.Failures {
			run.Failures = append(run.Failures, Failure{Attempt: f.Attempt, Step: f.Step, Error: f.Err.Error()})
		}
	}

	switch {
	case err != nil:
		run.Status = StatusFailed
		run.Error = err.Error()
	case report == nil:
		run.Status = StatusFailed
		run.Error = "runner returned no report"
	case report.Outcome == cycle.OutcomeSuccess:
		run.Status = StatusSuccess
	default:
		run.Status = StatusExhausted
		if rerr := report.Err(); rerr != nil {
			run.Error = rerr.Error()
		}
	}

	m.active = ""
	delete(m.cancels, id)

	m.logger.Info("run finished",
		"id", id,
		"status", run.Status,
		"attempts", run.Attempts,
		"salvaged", run.Salvaged,
		"collected", run.Collected)
}

func (m *Manager) publish(ctx context.Context, event *events.Event) {
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish event", "type", event.Type, "run_id", event.RunID, "error", err)
	}
}

func (m *Manager) record(ctx context.Context, id string) {
	if m.recorder == nil {
		return
	}

	run, err := m.Get(id)
	if err != nil {
		return
	}
	rec, err := toRecord(run)
	if err != nil {
		m.logger.Warn("cannot record run", "id", id, "error", err)
		return
	}
	if err := m.recorder.Save(ctx, rec); err != nil {
		m.logger.Warn("failed to record run", "id", id, "error", err)
	}
}

func toRecord(run *Run) (*database.RunRecord, error) {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id: %w", err)
	}

	rec := &database.RunRecord{
		ID:         id,
		Status:     string(run.Status),
		LoggedIn:   run.LoggedIn,
		Attempts:   run.Attempts,
		Salvaged:   run.Salvaged,
		StartedAt:  run.CreatedAt,
		FinishedAt: run.CompletedAt,
	}
	if run.Country != "" {
		rec.Country = &run.Country
	}
	if run.Error != "" {
		rec.Error = &run.Error
	}
	for _, f := range run.Failures {
		rec.Failures = append(rec.Failures, database.AttemptRecord{Attempt: f.Attempt, Step: f.Step, Error: f.Error})
	}
	return rec, nil
}

// Get retrieves a run by ID
func (m *Manager) Get(id string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return copyRun(run), nil
}

// List returns known runs, newest first.
func (m *Manager) List() []*Run {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		out = append(out, copyRun(run))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Active returns the run in progress, if any.
func (m *Manager) Active() (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == "" {
		return nil, false
	}
	return copyRun(m.runs[m.active]), true
}

// Shutdown cancels the active run and waits for background runs to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prune drops the oldest finished runs beyond historyLimit. Caller holds mu.
func (m *Manager) prune() {
	if len(m.runs) <= historyLimit {
		return
	}

	var oldest *Run
	for _, run := range m.runs {
		if run.ID == m.active {
			continue
		}
		if oldest == nil || run.CreatedAt.Before(oldest.CreatedAt) {
			oldest = run
		}
	}
	if oldest != nil {
		delete(m.runs, oldest.ID)
	}
}

func copyRun(run *Run) *Run {
	c := *run
	c.Failures = append([]Failure(nil), run.Failures...)
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
