package section

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/form"
	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/reconcile"
	"github.com/fmuoria/recruitment-scoring/internal/submission"
)

// Session is one open section. Its methods are safe for concurrent use.
type Session struct {
	ID string

	req       OpenRequest
	svc       *Service
	submitter *submission.Submitter
	openedAt  time.Time
	active    atomic.Int64

	mu         sync.Mutex
	form       *form.Form
	snap       reconcile.Snapshot
	generation uint64
	closed     bool
	// set from plan to write-back so a second submit cannot plan against a stale snapshot
	submitting bool
}

// Outcome reports what a submit wrote
type Outcome struct {
	Created int                `json:"created"`
	Updated int                `json:"updated"`
	Deleted int                `json:"deleted"`
	Score   models.ScoreTriple `json:"score"`
	// Applied is false when the session was closed or reloaded while saving
	Applied bool `json:"applied"`
}

func (s *Session) touch() { s.active.Store(time.Now().UnixNano()) }

func (s *Session) lastActive() time.Time { return time.Unix(0, s.active.Load()) }

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.mu.Unlock()
}

// edit runs fn against the form under the session lock
func (s *Session) edit(fn func(f *form.Form) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.touch()
	return fn(s.form)
}

// Request returns the request the session was opened with
func (s *Session) Request() OpenRequest { return s.req }

// OpenedAt returns when the session was opened
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// View renders the current form
func (s *Session) View() (form.View, error) {
	var v form.View
	err := s.edit(func(f *form.Form) error {
		v = f.View()
		return nil
	})
	return v, err
}

// SetValue stores a scalar value; see form.Form.SetValue
func (s *Session) SetValue(key models.ValueKey, value string) error {
	return s.edit(func(f *form.Form) error { return f.SetValue(key, value) })
}

// SetRepeatCount resizes a repeatable subheading
func (s *Session) SetRepeatCount(subheadingID int64, n int) error {
	return s.edit(func(f *form.Form) error { return f.SetRepeatCount(subheadingID, n) })
}

// Select toggles a variable subheading
func (s *Session) Select(subheadingID int64, selected bool) error {
	return s.edit(func(f *form.Form) error { return f.Select(subheadingID, selected) })
}

// SetStatus sets a record's verification status while screening
func (s *Session) SetStatus(key models.RecordKey, statusID int) error {
	return s.edit(func(f *form.Form) error { return f.SetStatus(key, statusID) })
}

// AttachFile sets a pending upload on a file parameter
func (s *Session) AttachFile(key models.ValueKey, file models.FileHandle) error {
	return s.edit(func(f *form.Form) error { return f.AttachFile(key, file) })
}

// ClearFile withdraws a pending upload or detaches the stored file
func (s *Session) ClearFile(key models.ValueKey) error {
	return s.edit(func(f *form.Form) error { return f.ClearFile(key) })
}

// SubmissionState returns the state of the last submit
func (s *Session) SubmissionState() submission.State {
	return s.submitter.State()
}

func (s *Session) guardKey() string {
	return fmt.Sprintf("%s:%d:%d:%s",
		s.req.Owner.RegistrationNo, s.req.Owner.ApplicationID, s.req.HeadingID, s.req.Mode.WriteOwner())
}

// Submit validates the form, saves the changes since the last save and
// writes back the assigned ids. A failed save leaves form and snapshot as
// they were.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if s.submitting {
		s.mu.Unlock()
		return Outcome{}, apperr.ErrSubmitInFlight
	}
	s.touch()
	if err := s.form.Validate(); err != nil {
		s.mu.Unlock()
		return Outcome{}, err
	}
	drafts := s.form.Drafts()
	plan := reconcile.Reconcile(drafts, s.snap, s.form.Score())
	gen := s.generation
	s.submitting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	out := Outcome{
		Created: len(plan.Create),
		Updated: len(plan.Update),
		Deleted: len(plan.Delete),
		Score:   plan.ParentScore,
	}
	if plan.Empty() {
		out.Applied = true
		return out, nil
	}

	result, err := s.submitter.Submit(ctx, s.guardKey(), reconcile.BuildRequest(plan))
	if err != nil {
		return Outcome{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.generation != gen {
		s.svc.log.Warn("Discarding save result for stale section", "session_id", s.ID)
		return out, nil
	}
	s.snap = s.snap.Apply(plan, result)
	s.form.ApplySaved(result, drafts, plan.DeletedKeys())
	if released := s.form.ReleasedPaths(); len(released) > 0 {
		s.svc.log.Debug("Released file references", "session_id", s.ID, "paths", released)
	}
	out.Applied = true
	return out, nil
}

// Reload rebuilds the form from metadata and saved values, dropping unsaved
// edits. It reports false when the session was closed or reloaded again
// before the load finished.
func (s *Session) Reload(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	f, snap, err := s.svc.build(ctx, s.req)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.generation != gen {
		return false, nil
	}
	s.form = f
	s.snap = snap
	s.touch()
	return true, nil
}
