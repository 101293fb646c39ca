package submission

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// State of a submitter
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Saver persists a save request. Timeouts are the saver's concern.
type Saver interface {
	Save(ctx context.Context, req models.SaveRequest) (*models.SaveResponse, error)
}

// Guard serializes submissions sharing a key, possibly across processes.
// Acquire fails with apperr.ErrSubmitInFlight when the key is held.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Submitter runs one save at a time and rejects re-entry while a save is
// in flight.
type Submitter struct {
	saver Saver
	guard Guard
	log   *logger.Logger

	mu      sync.Mutex
	state   State
	lastErr error
}

// NewSubmitter creates a submitter. A nil guard means in-process single flight only.
func NewSubmitter(saver Saver, guard Guard, log *logger.Logger) *Submitter {
	return &Submitter{
		saver: saver,
		guard: guard,
		log:   log.With("component", "Submitter"),
	}
}

// State returns the current state
func (s *Submitter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the error of the last failed attempt
func (s *Submitter) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Submit sends req. key identifies the guarded resource, typically the
// owner and heading. On failure nothing is assumed saved.
func (s *Submitter) Submit(ctx context.Context, key string, req models.SaveRequest) (models.SaveResult, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return models.SaveResult{}, apperr.ErrSubmitInFlight
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	attempt := uuid.NewString()
	log := s.log.With("attempt_id", attempt, "key", key)

	ctx, span := otel.Tracer("recruitment-scoring/submission").Start(ctx, "submission.Submit",
		trace.WithAttributes(
			attribute.String("attempt_id", attempt),
			attribute.Int("details", len(req.DetailList)),
			attribute.Int("parameters", len(req.ParameterList)),
			attribute.Int("files", len(req.Files)),
		))
	defer span.End()

	result, err := s.run(ctx, key, req)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
	} else {
		s.state = StateSucceeded
		s.lastErr = nil
	}
	s.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		log.Warn("Submission failed", "error", err)
		return models.SaveResult{}, err
	}
	log.Info("Submission saved",
		"details", len(result.Details),
		"parameters", len(result.Parameters),
	)
	return result, nil
}

func (s *Submitter) run(ctx context.Context, key string, req models.SaveRequest) (models.SaveResult, error) {
	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, key)
		if err != nil {
			if errors.Is(err, apperr.ErrSubmitInFlight) {
				return models.SaveResult{}, err
			}
			return models.SaveResult{}, apperr.Wrap(apperr.KindPersistenceFailed, err, "failed to acquire submission guard")
		}
		defer release()
	}

	resp, err := s.saver.Save(ctx, req)
	if err != nil {
		return models.SaveResult{}, apperr.Wrap(apperr.KindPersistenceFailed, err, "failed to save")
	}
	if resp == nil {
		return models.SaveResult{}, apperr.New(apperr.KindPersistenceFailed, "save returned no response")
	}
	if resp.Error != nil {
		return models.SaveResult{}, apperr.New(apperr.KindPersistenceFailed, "save rejected: %s", resp.Error.Message)
	}
	return resp.Result, nil
}
