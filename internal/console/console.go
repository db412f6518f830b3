package console

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/events"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/metrics"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/render"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/results"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
)

var (
	ErrEmptyInstruction = errors.New("instruction is required")
	ErrRunInProgress    = errors.New("an instruction is already being processed")
)

const (
	ValidationMessage     = "Please enter an instruction for the AI agent."
	FailurePrefix         = "An error occurred while processing your instruction: "
	UnknownFailureMessage = "Unknown error"
)

type Backend interface {
	Process(ctx context.Context, instruction string) (results.RunResult, error)
}

type Broker interface {
	Publish(event events.StatusEvent) events.StatusEvent
}

// Console owns the run lifecycle. At most one run is in flight; the current
// RunView is replaced, never edited in place, so a snapshot handed to a
// reader stays valid.
type Console struct {
	backend  Backend
	renderer *render.Renderer
	journal  store.Journal
	broker   Broker
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	pending bool
	current *render.RunView
}

func New(backend Backend, renderer *render.Renderer, journal store.Journal, broker Broker, m *metrics.Metrics) *Console {
	return &Console{
		backend:  backend,
		renderer: renderer,
		journal:  journal,
		broker:   broker,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
		current:  render.NewRunView("", "", render.StatusIdle),
	}
}

func (c *Console) Current() *render.RunView {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := *c.current
	return &snapshot
}

func (c *Console) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Submit runs one instruction to completion and returns the rendered view.
// Backend and payload failures are not returned as errors: they end up in the
// view as a failed run. Only ErrEmptyInstruction and ErrRunInProgress are.
func (c *Console) Submit(ctx context.Context, instruction string) (*render.RunView, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		c.metrics.SubmissionRejected("empty")
		return nil, ErrEmptyInstruction
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		c.metrics.SubmissionRejected("in_progress")
		return nil, ErrRunInProgress
	}
	c.pending = true
	runID := c.newID()
	processing := render.NewRunView(runID, instruction, render.StatusProcessing)
	processing.StartedAt = c.now()
	c.current = processing
	c.mu.Unlock()
	defer c.release(processing)

	startedAt := processing.StartedAt
	c.recordStart(ctx, processing)
	c.metrics.RunStarted()
	c.publishStatus(runID, render.StatusProcessing, "")
	log.Printf("run %s: processing instruction (%d chars)", runID, len(instruction))

	began := time.Now()
	run, err := c.backend.Process(ctx, instruction)
	elapsed := time.Since(began)

	final := c.finish(runID, instruction, startedAt, run, err)
	if err != nil {
		c.metrics.ObserveBackend("error", elapsed)
	} else {
		c.metrics.ObserveBackend("ok", elapsed)
	}

	c.mu.Lock()
	c.current = final
	c.pending = false
	c.mu.Unlock()

	counts := environmentCounts(final, run, err)
	for env, count := range counts {
		for i := 0; i < count; i++ {
			c.metrics.StepRendered(env)
		}
	}
	c.recordCompletion(final, len(run.Results), counts)
	c.metrics.RunFinished(string(final.Status))
	c.publishStatus(runID, final.Status, final.Message)
	log.Printf("run %s: %s after %s (%d steps)", runID, final.Status, final.Duration().Round(time.Millisecond), len(run.Results))

	snapshot := *final
	return &snapshot, nil
}

// release frees the submission guard when Submit unwinds without swapping in
// a final view, leaving a failed view behind.
func (c *Console) release(processing *render.RunView) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != processing {
		return
	}
	failed := c.freshView(processing.ID, processing.Instruction, processing.StartedAt)
	c.fail(failed, UnknownFailureMessage)
	failed.CompletedAt = c.now()
	c.current = failed
	c.pending = false
}

func (c *Console) finish(runID string, instruction string, startedAt time.Time, run results.RunResult, callErr error) *render.RunView {
	view := c.freshView(runID, instruction, startedAt)
	switch {
	case callErr != nil:
		log.Printf("run %s: backend call failed: %v", runID, callErr)
		c.fail(view, FailurePrefix+callErr.Error())
	case !run.Completed():
		message := strings.TrimSpace(run.Message)
		if message == "" {
			message = UnknownFailureMessage
		}
		c.fail(view, message)
	default:
		view.Status = render.StatusCompleted
		if err := c.renderer.RenderRun(view, run); err != nil {
			log.Printf("run %s: render failed: %v", runID, err)
			view = c.freshView(runID, instruction, startedAt)
			c.fail(view, FailurePrefix+err.Error())
		}
	}
	view.CompletedAt = c.now()
	return view
}

func (c *Console) freshView(runID string, instruction string, startedAt time.Time) *render.RunView {
	view := render.NewRunView(runID, instruction, render.StatusProcessing)
	view.StartedAt = startedAt
	return view
}

func (c *Console) fail(view *render.RunView, message string) {
	if err := c.renderer.Fail(view, message); err != nil {
		log.Printf("run %s: render failure banner: %v", view.ID, err)
		view.Status = render.StatusFailed
		view.Message = message
	}
}

func (c *Console) recordStart(ctx context.Context, view *render.RunView) {
	if c.journal == nil {
		return
	}
	err := c.journal.CreateRun(ctx, store.RunRecord{
		ID:          view.ID,
		Instruction: view.Instruction,
		Status:      string(render.StatusProcessing),
		CreatedAt:   view.StartedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("run %s: journal create failed: %v", view.ID, err)
	}
}

func (c *Console) recordCompletion(view *render.RunView, steps int, counts map[string]int) {
	if c.journal == nil {
		return
	}
	// The submitting request may already be gone; the journal entry should
	// still be closed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.journal.CompleteRun(ctx, store.RunRecord{
		ID:                view.ID,
		Status:            string(view.Status),
		Message:           view.Message,
		StepCount:         steps,
		EnvironmentCounts: counts,
		ReportGenerated:   view.DownloadEnabled,
		CompletedAt:       view.CompletedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("run %s: journal complete failed: %v", view.ID, err)
	}
}

func (c *Console) publishStatus(runID string, status render.Status, message string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(events.StatusEvent{
		RunID:   runID,
		Type:    events.TypeRunStatus,
		Status:  string(status),
		Message: message,
		TraceID: uuid.New().String(),
	})
}

// environmentCounts tallies the steps a completed run rendered. Error steps
// count as "error" and unclassified ones as "unknown".
func environmentCounts(view *render.RunView, run results.RunResult, callErr error) map[string]int {
	counts := map[string]int{}
	if callErr != nil || view.Status != render.StatusCompleted {
		return counts
	}
	for _, step := range run.Results {
		switch env := results.Classify(step); {
		case step.IsError():
			counts["error"]++
		case env == results.EnvironmentUnknown:
			counts["unknown"]++
		default:
			counts[string(env)]++
		}
	}
	return counts
}
