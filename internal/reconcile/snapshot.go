package reconcile

import (
	"context"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// ValueState is a persisted parameter value
type ValueState struct {
	ID    int64
	Value string
}

// DetailState is a persisted record with its values
type DetailState struct {
	ID       int64
	Deleted  bool
	StatusID int
	Score    models.ScoreTriple
	Values   map[int64]ValueState
}

// Snapshot is the persisted state a write is diffed against. It only holds
// rows whose ids may be reused by a write to Target.
type Snapshot struct {
	HeadingID int64
	Owner     models.Owner
	Target    models.OwnerFlag
	// Source is the track the prefill rows came from, empty when nothing was found
	Source  models.OwnerFlag
	Details map[models.RecordKey]DetailState
}

// OwnerQuery selects persisted values of one heading and ownership track
type OwnerQuery struct {
	RegistrationNo string
	ApplicationID  int64
	HeadingID      int64
	Owner          models.OwnerFlag
}

// ValuesFetcher returns previously persisted value rows
type ValuesFetcher interface {
	FetchValues(ctx context.Context, q OwnerQuery) ([]models.PersistedValue, error)
}

// PropagatesIDs reports whether ids read from source may be written back to
// target. This is the single place the ownership rule lives: ids only flow
// within the same track.
func PropagatesIDs(source, target models.OwnerFlag) bool {
	return source != "" && source == target
}

// ReadOrder lists the tracks to read, in order, when loading for target.
// Screener writes fall back to candidate rows; candidate writes never read
// screener rows.
func ReadOrder(target models.OwnerFlag) []models.OwnerFlag {
	if target == models.OwnerScreener {
		return []models.OwnerFlag{models.OwnerScreener, models.OwnerCandidate}
	}
	return []models.OwnerFlag{models.OwnerCandidate}
}

// NewSnapshot returns an empty snapshot for writes to target
func NewSnapshot(owner models.Owner, headingID int64, target models.OwnerFlag) Snapshot {
	return Snapshot{
		HeadingID: headingID,
		Owner:     owner,
		Target:    target,
		Details:   make(map[models.RecordKey]DetailState),
	}
}

// Load performs the two-phase read: the first track in ReadOrder that has
// rows wins. The rows are returned for prefill; ids enter the snapshot only
// when PropagatesIDs allows it.
func Load(ctx context.Context, fetcher ValuesFetcher, owner models.Owner, headingID int64, target models.OwnerFlag) (Snapshot, []models.PersistedValue, error) {
	snap := NewSnapshot(owner, headingID, target)
	for _, flag := range ReadOrder(target) {
		rows, err := fetcher.FetchValues(ctx, OwnerQuery{
			RegistrationNo: owner.RegistrationNo,
			ApplicationID:  owner.ApplicationID,
			HeadingID:      headingID,
			Owner:          flag,
		})
		if err != nil {
			return Snapshot{}, nil, apperr.Wrap(apperr.KindPersistenceFailed, err, "failed to fetch %s values of heading %d", flag, headingID)
		}
		if len(rows) == 0 {
			continue
		}
		snap.Source = flag
		if PropagatesIDs(flag, target) {
			snap.absorb(rows)
		}
		return snap, rows, nil
	}
	return snap, nil, nil
}

// PropagatesIDs reports whether the prefill rows may carry their ids
func (s Snapshot) PropagatesIDs() bool {
	return PropagatesIDs(s.Source, s.Target)
}

func (s *Snapshot) absorb(rows []models.PersistedValue) {
	for _, r := range rows {
		if r.DetailID == 0 {
			continue
		}
		key := models.RecordKey{SubheadingID: r.SubheadingID, RowIndex: r.RowIndex}
		d, ok := s.Details[key]
		if !ok {
			d = DetailState{ID: r.DetailID, StatusID: r.StatusID, Score: r.Score, Values: make(map[int64]ValueState)}
		}
		if r.ParameterValueID != 0 {
			d.Values[r.ParameterID] = ValueState{ID: r.ParameterValueID, Value: r.Value}
		}
		s.Details[key] = d
	}
}

// Clone returns a deep copy
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Details = make(map[models.RecordKey]DetailState, len(s.Details))
	for k, d := range s.Details {
		vals := make(map[int64]ValueState, len(d.Values))
		for p, v := range d.Values {
			vals[p] = v
		}
		d.Values = vals
		out.Details[k] = d
	}
	return out
}

// Apply returns a copy of s updated with the outcome of a successful save of plan
func (s Snapshot) Apply(plan Plan, result models.SaveResult) Snapshot {
	out := s.Clone()
	out.Source = s.Target

	detailIDs := make(map[models.RecordKey]int64, len(result.Details))
	for _, d := range result.Details {
		detailIDs[d.Key] = d.DetailID
	}
	valueIDs := make(map[models.ValueKey]int64, len(result.Parameters))
	for _, p := range result.Parameters {
		valueIDs[p.Key] = p.ParameterValueID
	}

	upsert := func(a Action) {
		d, ok := out.Details[a.Key]
		if !ok {
			d = DetailState{Values: make(map[int64]ValueState)}
		}
		d.ID = a.DetailID
		if id, ok := detailIDs[a.Key]; ok {
			d.ID = id
		}
		d.Deleted = false
		d.StatusID = a.StatusID
		d.Score = a.Score
		for _, v := range a.Values {
			vs := ValueState{ID: v.ParameterValueID, Value: v.Value}
			if id, ok := valueIDs[models.ValueKey{RecordKey: a.Key, ParameterID: v.ParameterID}]; ok {
				vs.ID = id
			}
			d.Values[v.ParameterID] = vs
		}
		out.Details[a.Key] = d
	}
	for _, a := range plan.Create {
		upsert(a)
	}
	for _, a := range plan.Update {
		upsert(a)
	}
	for _, a := range plan.Delete {
		if d, ok := out.Details[a.Key]; ok {
			d.Deleted = true
			out.Details[a.Key] = d
		}
	}
	return out
}
