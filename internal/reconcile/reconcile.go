package reconcile

import (
	"sort"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// ValueAction is one parameter value going out with a record
type ValueAction struct {
	ParameterID      int64
	ParameterValueID int64 // 0 when the value has never been saved
	Value            string
	IsFile           bool
	Pending          *models.FileHandle
}

// Action is one record write
type Action struct {
	Key      models.RecordKey
	DetailID int64 // 0 for creates
	StatusID int
	Score    models.ScoreTriple
	Values   []ValueAction
}

// Plan holds three disjoint action lists and the heading score
type Plan struct {
	HeadingID   int64
	Owner       models.Owner
	Target      models.OwnerFlag
	Create      []Action
	Update      []Action
	Delete      []Action
	ParentScore models.ScoreTriple
}

// Empty reports whether the plan writes no record
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// DeletedKeys lists the keys of soft-deleted records
func (p Plan) DeletedKeys() []models.RecordKey {
	keys := make([]models.RecordKey, len(p.Delete))
	for i, a := range p.Delete {
		keys[i] = a.Key
	}
	return keys
}

// Reconcile diffs drafts against snap. It never mutates either.
//
//   - no prior id, content         -> create
//   - prior id, content changed    -> update carrying the id
//   - prior id, content unchanged  -> nothing
//   - prior id, deselected/empty/gone -> soft delete, unless already deleted
func Reconcile(drafts []models.DraftRecord, snap Snapshot, parent models.ScoreTriple) Plan {
	plan := Plan{
		HeadingID:   snap.HeadingID,
		Owner:       snap.Owner,
		Target:      snap.Target,
		ParentScore: parent,
	}

	seen := make(map[models.RecordKey]bool, len(drafts))
	for _, d := range drafts {
		seen[d.Key] = true
		prior, has := snap.Details[d.Key]
		has = has && prior.ID != 0
		content := d.Selected && !d.Empty()

		switch {
		case !has && content:
			plan.Create = append(plan.Create, action(d, DetailState{}))
		case has && content:
			if changed(d, prior) {
				plan.Update = append(plan.Update, action(d, prior))
			}
		case has && !prior.Deleted:
			plan.Delete = append(plan.Delete, Action{Key: d.Key, DetailID: prior.ID, StatusID: prior.StatusID})
		}
	}

	var gone []models.RecordKey
	for k, prior := range snap.Details {
		if !seen[k] && prior.ID != 0 && !prior.Deleted {
			gone = append(gone, k)
		}
	}
	sort.Slice(gone, func(i, j int) bool {
		if gone[i].SubheadingID != gone[j].SubheadingID {
			return gone[i].SubheadingID < gone[j].SubheadingID
		}
		return gone[i].RowIndex < gone[j].RowIndex
	})
	for _, k := range gone {
		prior := snap.Details[k]
		plan.Delete = append(plan.Delete, Action{Key: k, DetailID: prior.ID, StatusID: prior.StatusID})
	}
	return plan
}

func action(d models.DraftRecord, prior DetailState) Action {
	a := Action{
		Key:      d.Key,
		DetailID: prior.ID,
		StatusID: d.StatusID,
		Score:    d.Score,
		Values:   make([]ValueAction, 0, len(d.Values)),
	}
	for _, v := range d.Values {
		if v.Value == "" {
			continue
		}
		a.Values = append(a.Values, ValueAction{
			ParameterID:      v.ParameterID,
			ParameterValueID: prior.Values[v.ParameterID].ID,
			Value:            v.Value,
			IsFile:           v.IsFile,
			Pending:          v.Pending,
		})
	}
	return a
}

func changed(d models.DraftRecord, prior DetailState) bool {
	if prior.Deleted || d.StatusID != prior.StatusID || d.Score != prior.Score {
		return true
	}
	for _, v := range d.Values {
		if v.Pending != nil {
			return true
		}
		pv, ok := prior.Values[v.ParameterID]
		if !ok || pv.Value != v.Value {
			return true
		}
	}
	return false
}

// BuildRequest turns a plan into the save collaborator's payload
func BuildRequest(plan Plan) models.SaveRequest {
	req := models.SaveRequest{
		ParentScore: models.ParentScore{
			RegistrationNo: plan.Owner.RegistrationNo,
			ApplicationID:  plan.Owner.ApplicationID,
			HeadingID:      plan.HeadingID,
			Owner:          plan.Target,
			Score:          plan.ParentScore,
		},
		DetailList:    []models.DetailPayload{},
		ParameterList: []models.ParameterPayload{},
		Files:         []models.FileUpload{},
	}

	detail := func(a Action, deleted bool) models.DetailPayload {
		return models.DetailPayload{
			DetailID:       a.DetailID,
			RegistrationNo: plan.Owner.RegistrationNo,
			ApplicationID:  plan.Owner.ApplicationID,
			HeadingID:      plan.HeadingID,
			SubheadingID:   a.Key.SubheadingID,
			RowIndex:       a.Key.RowIndex,
			StatusID:       a.StatusID,
			Score:          a.Score,
			DeleteFlag:     deleted,
			Owner:          plan.Target,
		}
	}
	values := func(a Action) {
		for _, v := range a.Values {
			req.ParameterList = append(req.ParameterList, models.ParameterPayload{
				ParameterValueID: v.ParameterValueID,
				DetailID:         a.DetailID,
				SubheadingID:     a.Key.SubheadingID,
				RowIndex:         a.Key.RowIndex,
				ParameterID:      v.ParameterID,
				Value:            v.Value,
				IsFile:           v.IsFile,
			})
			if v.Pending != nil {
				req.Files = append(req.Files, models.FileUpload{Path: v.Value, File: *v.Pending})
			}
		}
	}

	for _, a := range plan.Create {
		req.DetailList = append(req.DetailList, detail(a, false))
		values(a)
	}
	for _, a := range plan.Update {
		req.DetailList = append(req.DetailList, detail(a, false))
		values(a)
	}
	for _, a := range plan.Delete {
		req.DetailList = append(req.DetailList, detail(a, true))
	}
	return req
}
