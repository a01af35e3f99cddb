package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maltedev/coin-collector/internal/config"
	"github.com/maltedev/coin-collector/internal/cycle"
	"github.com/maltedev/coin-collector/internal/pacing"
	"github.com/maltedev/coin-collector/internal/parser"
	"github.com/maltedev/coin-collector/internal/resolve"
)

const (
	StepSetCountry = "set-country"
	StepNavigate   = "navigate-to-target"
	StepCollect    = "click-collect"
)

// Element is what the collector needs from a resolved node.
type Element interface {
	Click(ctx context.Context) error
	ClickScript(ctx context.Context) error
	Hover(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	Highlight(ctx context.Context) error
	Clear(ctx context.Context) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
}

// Driver is the browser session a run operates on.
type Driver interface {
	resolve.Finder[Element]
	Navigate(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
}

// Session is a driver whose Find returns a concrete element type.
type Session[E Element] interface {
	resolve.Finder[E]
	Navigate(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
}

// Bind adapts a Session to a Driver.
func Bind[E Element](s Session[E]) Driver {
	return bound[E]{s}
}

type bound[E Element] struct {
	Session[E]
}

func (b bound[E]) Find(ctx context.Context, q resolve.Query) (Element, error) {
	el, err := b.Session.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return el, nil
}

type Credentials struct {
	Email    string
	Password string
}

// Delays are the pauses between actions.
type Delays struct {
	// Landing follows the first page load.
	Landing pacing.Range
	// Look sits between bringing an element into view and acting on it.
	Look pacing.Range
	// Step follows opening a menu or typing into a field.
	Step pacing.Range
	// Settle follows anything that reloads or rerenders the page.
	Settle pacing.Range
	// Retry is the base pause before a cycle restarts; it widens per failure.
	Retry pacing.Range
}

func DefaultDelays() Delays {
	return Delays{
		Landing: pacing.Range{Min: 2 * time.Second, Max: 4 * time.Second},
		Look:    pacing.Range{Min: 500 * time.Millisecond, Max: time.Second},
		Step:    pacing.Range{Min: 1500 * time.Millisecond, Max: 2500 * time.Millisecond},
		Settle:  pacing.Range{Min: 5 * time.Second, Max: 7 * time.Second},
		Retry:   pacing.Range{Min: 5 * time.Second, Max: 7 * time.Second},
	}
}

type Options struct {
	Credentials    Credentials
	CoinPageURL    string
	SearchTerms    []string
	MaxAttempts    int
	ElementTimeout time.Duration
	ProbeTimeout   time.Duration
	Highlight      bool
	Delays         Delays
	Typing         pacing.TypingProfile
	Pacer          *pacing.Pacer
	Gate           Gate
	Parser         parser.Parser
	Logger         *slog.Logger
}

// OptionsFromConfig maps loaded configuration onto collector options.
func OptionsFromConfig(cfg *config.Config) Options {
	delays := DefaultDelays()
	delays.Settle = pacing.Range{Min: cfg.Pacing.SettleMin, Max: cfg.Pacing.SettleMax}
	delays.Retry = pacing.Range{Min: cfg.Pacing.RetryDelay, Max: cfg.Pacing.RetryDelay + cfg.Pacing.RetryJitter}

	typing := pacing.DefaultTypingProfile()
	typing.TypoRate = cfg.Pacing.TypingTypos
	typing.ThinkRate = cfg.Pacing.TypingThinks

	pacer := pacing.NewFromTime()
	if !cfg.Pacing.Enabled {
		pacer = pacing.Instant(time.Now().UnixNano())
	}

	return Options{
		Credentials:    Credentials{Email: cfg.Account.Email, Password: cfg.Account.Password},
		CoinPageURL:    cfg.Site.CoinPageURL,
		SearchTerms:    cfg.Site.SearchTerms,
		MaxAttempts:    cfg.Cycle.MaxAttempts,
		ElementTimeout: cfg.Cycle.ElementTimeout,
		ProbeTimeout:   cfg.Cycle.VerifyTimeout,
		Highlight:      cfg.Cycle.Highlight,
		Delays:         delays,
		Typing:         typing,
		Pacer:          pacer,
	}
}

// Collector runs the login, set-country, navigate and collect workflow on
// one browser session. Runs must not overlap.
type Collector struct {
	driver      Driver
	resolver    *resolve.Resolver[Element]
	creds       Credentials
	coinPageURL string
	searchTerms []string
	maxAttempts int
	probe       time.Duration
	delays      Delays
	typing      pacing.TypingProfile
	pacer       *pacing.Pacer
	gate        Gate
	parser      parser.Parser
	logger      *slog.Logger

	// shipTo is the last ship-to widget reading of the current run.
	shipTo *parser.ShipTo
}

func New(driver Driver, opts Options) *Collector {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Pacer == nil {
		opts.Pacer = pacing.NewFromTime()
	}
	if opts.Gate == nil {
		opts.Gate = AutoGate{}
	}
	if opts.Parser == nil {
		opts.Parser = parser.NewShipToParser()
	}
	if len(opts.SearchTerms) == 0 {
		opts.SearchTerms = koreaLabels
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 3 * time.Second
	}
	if opts.Delays == (Delays{}) {
		opts.Delays = DefaultDelays()
	}
	if opts.Typing == (pacing.TypingProfile{}) {
		opts.Typing = pacing.DefaultTypingProfile()
	}

	return &Collector{
		driver: driver,
		resolver: resolve.NewResolver[Element](driver, resolve.Options{
			Timeout:   opts.ElementTimeout,
			Highlight: opts.Highlight,
			Logger:    opts.Logger,
		}),
		creds:       opts.Credentials,
		coinPageURL: opts.CoinPageURL,
		searchTerms: opts.SearchTerms,
		maxAttempts: opts.MaxAttempts,
		probe:       opts.ProbeTimeout,
		delays:      opts.Delays,
		typing:      opts.Typing,
		pacer:       opts.Pacer,
		gate:        opts.Gate,
		parser:      opts.Parser,
		logger:      opts.Logger.With("component", "collector"),
	}
}

func (c *Collector) MaxAttempts() int {
	return c.maxAttempts
}

// Report summarizes one run.
type Report struct {
	Outcome    cycle.Outcome
	LoggedIn   bool
	Attempts   int
	Salvaged   bool
	Failures   []cycle.AttemptFailure
	ShipTo     *parser.ShipTo
	StartedAt  time.Time
	FinishedAt time.Time
}

// Err is nil when coins were collected within the attempt budget.
func (r *Report) Err() error {
	if r.Outcome == cycle.OutcomeSuccess {
		return nil
	}
	return (&cycle.Result{Outcome: r.Outcome, Attempts: r.Attempts, LastError: r.lastError()}).Err()
}

func (r *Report) lastError() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return r.Failures[len(r.Failures)-1].Err
}

// Collected reports whether the collect button was clicked, either within
// the attempts or by the last resort.
func (r *Report) Collected() bool {
	return r.Outcome == cycle.OutcomeSuccess || r.Salvaged
}

// Plan is the cycle the collector drives. The last resort reloads the coin
// page before clicking, since the failed attempt may have left it elsewhere.
func (c *Collector) Plan() cycle.Plan {
	navigate := cycle.Step{Name: StepNavigate, Run: c.navigate}
	collect := cycle.Step{Name: StepCollect, Run: c.collect}

	return cycle.Plan{
		Steps: []cycle.Step{
			{Name: StepSetCountry, Run: c.setCountry},
			navigate,
			collect,
		},
		LastResort: []cycle.Step{navigate, collect},
	}
}

// Run performs one collection run. observer, when set, sees every cycle
// transition. The error is only non-nil when the run was cut short by ctx
// or by the operator; exhaustion is reported in the Report.
func (c *Collector) Run(ctx context.Context, observer cycle.Observer) (*Report, error) {
	report := &Report{StartedAt: time.Now()}
	defer func() { report.FinishedAt = time.Now() }()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c.shipTo = nil
	c.logger.Info("starting collection run", "max_attempts", c.maxAttempts, "url", c.coinPageURL)

	if err := c.open(runCtx); err != nil {
		if stop := c.interrupted(runCtx, cancel, err); stop != nil {
			return report, stop
		}
		c.logger.Warn("landing page failed to load", "error", err)
	}

	if err := c.Login(runCtx); err != nil {
		if stop := c.interrupted(runCtx, cancel, err); stop != nil {
			return report, stop
		}
		c.logger.Warn("login failed, continuing anyway", "error", err)
	} else {
		report.LoggedIn = true
		c.logger.Info("logged in")
	}

	backoff := pacing.NewBackoff(c.pacer, c.delays.Retry)
	ctrl := cycle.NewController(c.maxAttempts, cycle.Options{
		Observer: c.observe(cancel, observer),
		Pause:    backoff.Wait,
		Logger:   c.logger,
	})

	res, err := ctrl.Run(runCtx, c.Plan())
	if res != nil {
		report.Outcome = res.Outcome
		report.Attempts = res.Attempts
		report.Salvaged = res.Salvaged
		report.Failures = res.Failures
	}
	report.ShipTo = c.shipTo
	if err != nil {
		if cause := context.Cause(runCtx); errors.Is(cause, ErrOperatorAborted) {
			return report, cause
		}
		return report, err
	}

	switch {
	case report.Outcome == cycle.OutcomeSuccess:
		c.logger.Info("coins collected", "attempts", report.Attempts)
	case report.Salvaged:
		c.logger.Warn("attempts exhausted, last resort collected coins", "attempts", report.Attempts)
	default:
		c.logger.Error("attempts exhausted without collecting coins", "attempts", report.Attempts, "error", report.Err())
	}

	return report, nil
}

// observe forwards transitions and stops the run when the operator aborts.
func (c *Collector) observe(cancel context.CancelCauseFunc, next cycle.Observer) cycle.Observer {
	return func(t cycle.Transition) {
		if t.Err != nil && errors.Is(t.Err, ErrOperatorAborted) {
			cancel(ErrOperatorAborted)
		}
		if next != nil {
			next(t)
		}
	}
}

// interrupted reports whether err should end the run rather than be logged.
func (c *Collector) interrupted(ctx context.Context, cancel context.CancelCauseFunc, err error) error {
	if errors.Is(err, ErrOperatorAborted) {
		cancel(ErrOperatorAborted)
		return ErrOperatorAborted
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}
