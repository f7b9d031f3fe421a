package autopilot

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/simon020286/go-autopilot/builder"
	"github.com/simon020286/go-autopilot/logging"
	"github.com/simon020286/go-autopilot/models"
	"github.com/simon020286/go-autopilot/moodle"
	"go.uber.org/zap"
)

// ErrAlreadyRun is returned when Run is called a second time
var ErrAlreadyRun = errors.New("workflow already executed")

// Connector creates an authenticated session for baseURL
type Connector func(ctx context.Context, baseURL, token string) (models.Session, error)

// MoodleConnector returns a Connector backed by the moodle package
func MoodleConnector(opts ...moodle.Option) Connector {
	return func(ctx context.Context, baseURL, token string) (models.Session, error) {
		s, err := moodle.New(baseURL, opts...)
		if err != nil {
			return nil, err
		}
		if err := s.Connect(ctx, token); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Engine runs the steps of one workflow strictly in order against one
// session, sharing one Context. It is single use.
type Engine struct {
	baseURL   string
	steps     []models.Step
	registry  *builder.Registry
	session   models.Session
	connector Connector
	logger    *zap.Logger
	eventBus  *eventBus
	shared    *models.Context
	runID     string
	ran       atomic.Bool
}

// Option configures an Engine
type Option func(*Engine)

// WithRegistry sets the registry used by BuildFromConfig
func WithRegistry(r *builder.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithSession uses an already connected session
func WithSession(s models.Session) Option {
	return func(e *Engine) {
		e.session = s
	}
}

// WithConnector replaces the session factory used by Connect
func WithConnector(c Connector) Option {
	return func(e *Engine) {
		e.connector = c
	}
}

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithListener registers an event listener
func WithListener(l models.EventListener) Option {
	return func(e *Engine) {
		e.eventBus.addListener(l)
	}
}

// WithBaseURL overrides the environment url of the workflow
func WithBaseURL(url string) Option {
	return func(e *Engine) {
		if url != "" {
			e.baseURL = url
		}
	}
}

// NewEngine creates an engine for already built steps
func NewEngine(baseURL string, steps []models.Step, opts ...Option) *Engine {
	e := newEngine(baseURL, opts...)
	e.steps = steps
	return e
}

func newEngine(baseURL string, opts ...Option) *Engine {
	runID := uuid.NewString()
	e := &Engine{
		baseURL:  baseURL,
		registry: builder.Default(),
		logger:   zap.NewNop(),
		eventBus: newEventBus(runID),
		shared:   models.NewContext(),
		runID:    runID,
	}
	e.connector = MoodleConnector()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddListener registers a listener after construction
func (e *Engine) AddListener(l models.EventListener) {
	e.eventBus.addListener(l)
}

// RunID identifies this engine in logs and events
func (e *Engine) RunID() string {
	return e.runID
}

// Context returns the shared context
func (e *Engine) Context() *models.Context {
	return e.shared
}

// Steps returns the steps in execution order
func (e *Engine) Steps() []models.Step {
	return e.steps
}

// Session returns the session, nil before Connect
func (e *Engine) Session() models.Session {
	return e.session
}

// Connect creates and authenticates the session for the workflow url.
func (e *Engine) Connect(ctx context.Context, token string) error {
	session, err := e.connector(ctx, e.baseURL, token)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", e.baseURL, err)
	}
	e.session = session

	operations := 0
	if c, ok := session.(interface{ Catalogue() *moodle.Catalogue }); ok {
		operations = c.Catalogue().Len()
	}
	e.eventBus.EmitSessionConnected(session.User(), operations)
	return nil
}

// Execute connects unless a session was supplied, then runs the workflow.
func (e *Engine) Execute(ctx context.Context, token string) error {
	if e.session == nil {
		if err := e.Connect(ctx, token); err != nil {
			e.eventBus.EmitWorkflowError(err)
			return err
		}
	}
	return e.Run(ctx)
}

// Run executes every step in order. The first failure stops the run;
// outputs already published stay in the Context.
func (e *Engine) Run(ctx context.Context) error {
	if !e.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	logger := e.logger.With(zap.String("run_id", e.runID))
	start := time.Now()
	e.eventBus.EmitWorkflowStarted(len(e.steps))

	for i, step := range e.steps {
		info := step.Info()

		if err := ctx.Err(); err != nil {
			werr := models.WrapStepError(i, info, err)
			e.eventBus.EmitWorkflowError(werr)
			return werr
		}

		stepLogger := logger.With(zap.Int("step", i+1), zap.String("step_type", info.Type))
		if info.ID != "" {
			stepLogger = stepLogger.With(zap.String("step_id", info.ID))
		}
		stepCtx := logging.WithLogger(ctx, stepLogger)

		e.eventBus.EmitStepStarted(i, info)
		stepStart := time.Now()

		if err := e.runStep(stepCtx, step); err != nil {
			werr := models.WrapStepError(i, info, err)
			e.eventBus.EmitStepError(i, info, err)
			e.eventBus.EmitWorkflowError(werr)
			return werr
		}

		e.eventBus.EmitStepOutput(i, info, step.Output())
		e.eventBus.EmitStepCompleted(i, info, time.Since(stepStart))
	}

	e.eventBus.EmitWorkflowCompleted(time.Since(start))
	return nil
}

// runStep drives one step through its lifecycle. Cleanup runs whenever
// Setup succeeded.
func (e *Engine) runStep(ctx context.Context, step models.Step) error {
	if err := step.ResolveContext(e.shared); err != nil {
		return err
	}
	if err := step.BindSession(e.session); err != nil {
		return err
	}
	if err := step.Setup(ctx); err != nil {
		return err
	}

	runErr := step.Run(ctx)
	if cleanupErr := step.Cleanup(ctx); cleanupErr != nil {
		if runErr == nil {
			return fmt.Errorf("cleanup: %w", cleanupErr)
		}
		return errors.Join(runErr, fmt.Errorf("cleanup: %w", cleanupErr))
	}
	if runErr != nil {
		return runErr
	}

	if id := step.Info().ID; id != "" {
		return e.shared.Publish(id, step.Output())
	}
	return nil
}
