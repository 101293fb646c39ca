package section

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fmuoria/recruitment-scoring/internal/attachment"
	"github.com/fmuoria/recruitment-scoring/internal/form"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/reconcile"
	"github.com/fmuoria/recruitment-scoring/internal/submission"
)

var (
	ErrNotFound = errors.New("section session not found")
	ErrClosed   = errors.New("section session is closed")
)

// TreeLoader loads the metadata tree of one heading
type TreeLoader interface {
	Load(ctx context.Context, advertisementID, headingID int64, filters map[string]string) (*models.Tree, error)
}

// OpenRequest describes the section to open
type OpenRequest struct {
	AdvertisementID int64
	HeadingID       int64
	Owner           models.Owner
	Mode            form.Mode
	Selection       form.Selection
	Filters         map[string]string // passed to every option list query
}

// Service opens section sessions and keeps them until closed
type Service struct {
	loader TreeLoader
	values reconcile.ValuesFetcher
	saver  submission.Saver
	guard  submission.Guard
	paths  *attachment.PathBuilder
	log    *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a new section service
func NewService(loader TreeLoader, values reconcile.ValuesFetcher, saver submission.Saver, guard submission.Guard, paths *attachment.PathBuilder, log *logger.Logger) *Service {
	if guard == nil {
		guard = submission.NewLocalGuard()
	}
	return &Service{
		loader:   loader,
		values:   values,
		saver:    saver,
		guard:    guard,
		paths:    paths,
		log:      log.With("component", "SectionService"),
		sessions: make(map[string]*Session),
	}
}

// Open loads metadata and previously saved values and registers a session
func (s *Service) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	if req.Owner.RegistrationNo == "" {
		return nil, fmt.Errorf("registration number is required")
	}

	f, snap, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        uuid.NewString(),
		req:       req,
		svc:       s,
		form:      f,
		snap:      snap,
		submitter: submission.NewSubmitter(s.saver, s.guard, s.log),
		openedAt:  time.Now(),
	}
	sess.touch()

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.log.Info("Section opened",
		"session_id", sess.ID,
		"registration_no", req.Owner.RegistrationNo,
		"heading_id", req.HeadingID,
		"mode", req.Mode.String(),
		"prefill_source", snap.Source,
	)
	return sess, nil
}

func (s *Service) build(ctx context.Context, req OpenRequest) (*form.Form, reconcile.Snapshot, error) {
	tree, err := s.loader.Load(ctx, req.AdvertisementID, req.HeadingID, req.Filters)
	if err != nil {
		return nil, reconcile.Snapshot{}, err
	}
	snap, rows, err := reconcile.Load(ctx, s.values, req.Owner, req.HeadingID, req.Mode.WriteOwner())
	if err != nil {
		return nil, reconcile.Snapshot{}, err
	}

	f := form.New(tree, form.Options{
		Owner:     req.Owner,
		Mode:      req.Mode,
		Selection: req.Selection,
		Paths:     s.paths,
	})
	f.Prefill(rows, snap.PropagatesIDs())
	return f, snap, nil
}

// Get returns an open session
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Close closes and forgets a session. Results of its in-flight loads and
// saves are discarded when they arrive.
func (s *Service) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	sess.close()
	s.log.Info("Section closed", "session_id", id)
	return nil
}

// Expire closes sessions idle for longer than maxIdle and returns their ids
func (s *Service) Expire(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	var expired []string
	for id, sess := range s.sessions {
		if sess.lastActive().Before(cutoff) {
			expired = append(expired, id)
			delete(s.sessions, id)
			sess.close()
		}
	}
	s.mu.Unlock()

	sort.Strings(expired)
	if len(expired) > 0 {
		s.log.Info("Expired idle sections", "count", len(expired))
	}
	return expired
}

// Len returns the number of open sessions
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
