package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/groupsync/pkg/errors"
	"github.com/cuemby/groupsync/pkg/events"
	"github.com/cuemby/groupsync/pkg/log"
	"github.com/cuemby/groupsync/pkg/metrics"
	"github.com/cuemby/groupsync/pkg/stats"
	"github.com/cuemby/groupsync/pkg/storage"
	"github.com/cuemby/groupsync/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultQueueName names the checkpoint when no other name is configured
const DefaultQueueName = "gg-sync"

// Mode selects how Resume drains the queue
type Mode int

const (
	// ModeDrain runs every pending step in one call
	ModeDrain Mode = iota
	// ModeStep runs a single step and returns, for request/response triggers
	ModeStep
)

// StepContext is the explicit execution context handed to a step handler
type StepContext struct {
	JobID         string
	GroupID       string
	Identifier    string
	LocalGroupIDs []string // local groups admitted into the task at plan time
	Step          types.Step
}

// StepFunc executes one queued step
type StepFunc func(ctx context.Context, sc StepContext) error

// Qualifier decides whether a mapping takes part in a job
type Qualifier func(ctx context.Context, m types.Mapping) (bool, error)

// Outcome reports where a Resume call left the job
type Outcome struct {
	JobID      string
	Status     types.JobStatus
	Remaining  int
	FailedStep string
	Err        error
	Stats      types.Stats
	EndURL     string
}

// Runner turns mappings into a checkpointed step queue and drives it
type Runner struct {
	queue      storage.Queue
	tracker    *stats.Tracker
	handlers   map[string]StepFunc
	pipeline   []StepDef
	name       string
	title      string
	endURL     string
	skipEndURL bool
	qualifier  Qualifier
	broker     *events.Broker
	logger     zerolog.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithQueueName sets the checkpoint name
func WithQueueName(name string) Option {
	return func(r *Runner) { r.name = name }
}

// WithTitle sets the human title of planned jobs
func WithTitle(title string) Option {
	return func(r *Runner) { r.title = title }
}

// WithEndURL sets the post-completion navigation hint
func WithEndURL(url string) Option {
	return func(r *Runner) { r.endURL = url }
}

// WithSkipEndURL suppresses the navigation hint, for headless triggers
func WithSkipEndURL() Option {
	return func(r *Runner) { r.skipEndURL = true }
}

// WithQualifier sets the mapping admission policy
func WithQualifier(q Qualifier) Option {
	return func(r *Runner) { r.qualifier = q }
}

// WithBroker publishes progress events to b
func WithBroker(b *events.Broker) Option {
	return func(r *Runner) { r.broker = b }
}

// WithPipeline replaces the step sequence queued per group
func WithPipeline(defs []StepDef) Option {
	return func(r *Runner) { r.pipeline = defs }
}

// New creates a runner over a queue and a stats tracker
func New(queue storage.Queue, tracker *stats.Tracker, opts ...Option) *Runner {
	r := &Runner{
		queue:    queue,
		tracker:  tracker,
		handlers: make(map[string]StepFunc),
		pipeline: DefaultPipeline,
		name:     DefaultQueueName,
		title:    "Group sync: local groups to remote groups",
		logger:   log.WithComponent("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a handler to a step name
func (r *Runner) Register(name string, fn StepFunc) {
	r.handlers[name] = fn
}

// Name returns the checkpoint name of the runner
func (r *Runner) Name() string {
	return r.name
}

// Plan builds and persists a fresh checkpoint for mappings. It returns nil
// without touching the queue or the stats when no mapping qualifies.
func (r *Runner) Plan(ctx context.Context, mappings []types.Mapping) (*types.Checkpoint, error) {
	groups, err := r.groupMappings(ctx, mappings)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		metrics.JobsTotal.WithLabelValues("nothing_to_sync").Inc()
		r.logger.Info().Msg("no qualifying group mappings, nothing to sync")
		return nil, nil
	}

	if err := r.tracker.Reset(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cp := &types.Checkpoint{
		Name:      r.name,
		JobID:     uuid.New().String(),
		Title:     r.title,
		States:    make(map[string]types.TaskState, len(groups)),
		Status:    types.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for i, g := range groups {
		label := g.Label
		if label == "" {
			label = g.LocalGroupIDs[0]
		}
		identifier := fmt.Sprintf("Group%d %s", i+1, label)
		args := append([]string{g.RemoteGroupID, identifier}, g.LocalGroupIDs...)
		for j, def := range r.pipeline {
			cp.Steps = append(cp.Steps, types.Step{
				Handler: def.Handler,
				Args:    args,
				Title:   fmt.Sprintf("%s: %s", identifier, def.Title),
				State:   def.State,
				Final:   j == len(r.pipeline)-1,
			})
		}
		cp.States[g.RemoteGroupID] = types.TaskStateCreated
	}

	// Saving under the same name replaces any leftover checkpoint
	if err := r.queue.SaveCheckpoint(cp); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}

	r.logger.Info().
		Str("job_id", cp.JobID).
		Int("groups", len(groups)).
		Int("steps", len(cp.Steps)).
		Msg("job planned")
	r.broker.Publish(&events.Event{
		ID:       cp.JobID,
		Type:     events.EventJobPlanned,
		Message:  cp.Title,
		Metadata: map[string]string{"job_id": cp.JobID},
	})

	return cp, nil
}

// plannedGroup is one remote group task with the local groups admitted into it
type plannedGroup struct {
	RemoteGroupID string
	Label         string
	LocalGroupIDs []string
}

// groupMappings keeps qualifying mappings, one task per remote group in
// first-seen order. The label of the first qualifying mapping names the task.
func (r *Runner) groupMappings(ctx context.Context, mappings []types.Mapping) ([]*plannedGroup, error) {
	byRemote := make(map[string]*plannedGroup)
	var groups []*plannedGroup
	for _, m := range mappings {
		if m.RemoteGroupID == "" || m.LocalGroupID == "" {
			continue
		}
		if r.qualifier != nil {
			ok, err := r.qualifier(ctx, m)
			if err != nil {
				return nil, fmt.Errorf("failed to qualify mapping %s: %w", m.LocalGroupID, err)
			}
			if !ok {
				continue
			}
		}
		g, ok := byRemote[m.RemoteGroupID]
		if !ok {
			g = &plannedGroup{RemoteGroupID: m.RemoteGroupID, Label: m.Label}
			byRemote[m.RemoteGroupID] = g
			groups = append(groups, g)
		}
		if !contains(g.LocalGroupIDs, m.LocalGroupID) {
			g.LocalGroupIDs = append(g.LocalGroupIDs, m.LocalGroupID)
		}
	}
	return groups, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Resume drains the persisted queue. Each completed step is removed from
// the checkpoint before the next one starts. On the first failure the job
// is aborted with the checkpoint left in place and the step error returned.
func (r *Runner) Resume(ctx context.Context, mode Mode) (*Outcome, error) {
	cp, err := r.queue.LoadCheckpoint(r.name)
	if err != nil {
		return nil, err
	}
	logger := log.WithJobID(r.logger, cp.JobID)

	cp.Status = types.JobStatusRunning
	cp.FailedStep = ""
	cp.LastError = ""

	for len(cp.Steps) > 0 {
		if err := ctx.Err(); err != nil {
			cp.Status = types.JobStatusSuspended
			if saveErr := r.save(cp); saveErr != nil {
				return nil, saveErr
			}
			return &Outcome{JobID: cp.JobID, Status: cp.Status, Remaining: len(cp.Steps), Err: err}, err
		}

		step := cp.Steps[0]
		if err := r.runStep(ctx, cp, step); err != nil {
			return r.abort(cp, step, err)
		}

		cp.Steps = cp.Steps[1:]
		if step.Final {
			cp.States[step.GroupID()] = types.TaskStateDone
		}
		if err := r.save(cp); err != nil {
			return nil, err
		}

		logger.Info().Str("handler", step.Handler).Str("group_id", step.GroupID()).Msg(step.Title)
		r.broker.Publish(&events.Event{
			ID:      cp.JobID,
			Type:    events.EventStepCompleted,
			Message: step.Title,
			Metadata: map[string]string{
				"job_id":   cp.JobID,
				"group_id": step.GroupID(),
				"handler":  step.Handler,
			},
		})

		if mode == ModeStep && len(cp.Steps) > 0 {
			cp.Status = types.JobStatusSuspended
			if err := r.save(cp); err != nil {
				return nil, err
			}
			metrics.JobsTotal.WithLabelValues("yielded").Inc()
			return &Outcome{JobID: cp.JobID, Status: cp.Status, Remaining: len(cp.Steps)}, nil
		}
	}

	return r.complete(cp)
}

func (r *Runner) runStep(ctx context.Context, cp *types.Checkpoint, step types.Step) error {
	fn, ok := r.handlers[step.Handler]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrUnknownStep, step.Handler)
	}

	if cp.States == nil {
		cp.States = make(map[string]types.TaskState)
	}
	cp.States[step.GroupID()] = step.State
	if err := r.save(cp); err != nil {
		return err
	}

	timer := metrics.NewTimer()
	err := fn(ctx, StepContext{
		JobID:         cp.JobID,
		GroupID:       step.GroupID(),
		Identifier:    step.Identifier(),
		LocalGroupIDs: step.LocalGroupIDs(),
		Step:          step,
	})
	timer.ObserveDurationVec(metrics.StepDuration, step.Handler)

	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.StepsTotal.WithLabelValues(step.Handler, status).Inc()
	return err
}

func (r *Runner) abort(cp *types.Checkpoint, step types.Step, cause error) (*Outcome, error) {
	cp.Status = types.JobStatusAborted
	cp.FailedStep = step.Title
	cp.LastError = cause.Error()
	if cp.States != nil {
		cp.States[step.GroupID()] = types.TaskStateAborted
	}
	if err := r.save(cp); err != nil {
		r.logger.Error().Err(err).Str("job_id", cp.JobID).Msg("failed to persist aborted checkpoint")
	}

	metrics.JobsTotal.WithLabelValues("aborted").Inc()
	r.logger.Error().
		Err(cause).
		Str("job_id", cp.JobID).
		Str("handler", step.Handler).
		Str("group_id", step.GroupID()).
		Msg("job aborted")
	r.broker.Publish(&events.Event{
		ID:      cp.JobID,
		Type:    events.EventStepFailed,
		Message: step.Title,
		Metadata: map[string]string{
			"job_id":   cp.JobID,
			"group_id": step.GroupID(),
			"handler":  step.Handler,
			"error":    cause.Error(),
		},
	})
	r.broker.Publish(&events.Event{ID: cp.JobID, Type: events.EventJobAborted, Message: cp.Title})

	stepErr := &errors.StepError{Title: step.Title, Handler: step.Handler, Err: cause}
	return &Outcome{
		JobID:      cp.JobID,
		Status:     cp.Status,
		Remaining:  len(cp.Steps),
		FailedStep: step.Title,
		Err:        stepErr,
	}, stepErr
}

func (r *Runner) complete(cp *types.Checkpoint) (*Outcome, error) {
	if err := r.queue.DeleteCheckpoint(r.name); err != nil {
		return nil, fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	st, err := r.tracker.Get()
	if err != nil {
		return nil, err
	}
	metrics.ObserveStats(st)
	metrics.JobsTotal.WithLabelValues("done").Inc()

	r.logger.Info().Str("job_id", cp.JobID).Interface("stats", st).Msg("job completed")
	r.broker.Publish(&events.Event{ID: cp.JobID, Type: events.EventJobCompleted, Message: cp.Title})

	out := &Outcome{JobID: cp.JobID, Status: types.JobStatusDone, Stats: st}
	if !r.skipEndURL {
		out.EndURL = r.endURL
	}
	return out, nil
}

func (r *Runner) save(cp *types.Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	if err := r.queue.SaveCheckpoint(cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Status returns the persisted checkpoint for inspection
func (r *Runner) Status(ctx context.Context) (*types.Checkpoint, error) {
	return r.queue.LoadCheckpoint(r.name)
}

// Stats returns the current stats read-back
func (r *Runner) Stats(ctx context.Context) (types.Stats, error) {
	return r.tracker.Get()
}
