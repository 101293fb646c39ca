package form

import (
	"strings"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// Drafts returns a read-only snapshot of every record with its resolved,
// non-empty values. Deselected records are included with Selected=false so
// their persisted counterparts can be soft-deleted.
func (f *Form) Drafts() []models.DraftRecord {
	records := f.Records()
	out := make([]models.DraftRecord, 0, len(records))
	for _, r := range records {
		d := models.DraftRecord{
			Key:      r.Key(),
			Selected: f.active(r),
			StatusID: r.StatusID,
			Score:    r.Score,
		}
		sub, _ := f.tree.Subheading(r.SubheadingID)
		for _, p := range sub.Parameters {
			key := valueKey(r, p.ID)
			if p.IsFile() {
				a := f.tracker.Get(key)
				if a.IsEmpty() {
					continue
				}
				dv := models.DraftValue{ParameterID: p.ID, Value: f.FilePath(key), IsFile: true}
				if a.IsPending() {
					file := *a.Pending()
					dv.Pending = &file
					dv.UploadSeq = f.tracker.PendingSeq(key)
				}
				d.Values = append(d.Values, dv)
				continue
			}
			pv, ok := r.Values[p.ID]
			if !ok {
				continue
			}
			if v := strings.TrimSpace(pv.Value); v != "" {
				d.Values = append(d.Values, models.DraftValue{ParameterID: p.ID, Value: v})
			}
		}
		out = append(out, d)
	}
	return out
}

// Prefill materializes previously persisted rows. Values of unknown
// parameters are skipped. withIDs copies database ids onto the records; it is
// false when the rows come from a foreign ownership track.
func (f *Form) Prefill(values []models.PersistedValue, withIDs bool) {
	for _, v := range values {
		p, sub, ok := f.tree.Parameter(v.ParameterID)
		if !ok || sub.ID != v.SubheadingID {
			continue
		}
		if f.opts.Selection == SelectionFixed && v.RowIndex != 0 {
			continue
		}

		rk := models.RecordKey{SubheadingID: v.SubheadingID, RowIndex: v.RowIndex}
		r := f.ensureRecord(rk)
		r.Selected = true
		r.StatusID = v.StatusID
		if withIDs && v.DetailID != 0 {
			id := v.DetailID
			r.ID = &id
		}
		if f.opts.Selection == SelectionRepeatable && f.counts[rk.SubheadingID] <= rk.RowIndex {
			f.counts[rk.SubheadingID] = rk.RowIndex + 1
		}

		key := models.ValueKey{RecordKey: rk, ParameterID: p.ID}
		if p.IsFile() {
			f.tracker.MarkStored(key, v.Value)
			continue
		}
		pv := &models.ParameterValue{ParameterID: p.ID, RowIndex: v.RowIndex, RecordID: r.ID, Value: v.Value}
		if withIDs && v.ParameterValueID != 0 {
			id := v.ParameterValueID
			pv.ID = &id
		}
		r.Values[p.ID] = pv
	}

	// repeatable groups are contiguous from row 0
	if f.opts.Selection == SelectionRepeatable {
		for subID, n := range f.counts {
			for row := 0; row < n; row++ {
				f.ensureRecord(models.RecordKey{SubheadingID: subID, RowIndex: row})
			}
		}
	}
	f.recalculate()
}

// ApplySaved writes back the ids assigned by a successful save. Pending
// uploads that went out with drafts become stored, and deleted keys are
// flagged.
func (f *Form) ApplySaved(result models.SaveResult, drafts []models.DraftRecord, deleted []models.RecordKey) {
	for _, d := range result.Details {
		if r, ok := f.records[d.Key]; ok {
			id := d.DetailID
			r.ID = &id
			for _, pv := range r.Values {
				pv.RecordID = r.ID
			}
		}
	}
	for _, a := range result.Parameters {
		r, ok := f.records[a.Key.RecordKey]
		if !ok {
			continue
		}
		if pv, ok := r.Values[a.Key.ParameterID]; ok {
			id := a.ParameterValueID
			pv.ID = &id
		}
	}
	for _, d := range drafts {
		for _, v := range d.Values {
			if v.Pending == nil {
				continue
			}
			key := models.ValueKey{RecordKey: d.Key, ParameterID: v.ParameterID}
			f.tracker.Promote(key, v.UploadSeq, v.Value)
		}
	}
	for _, k := range deleted {
		if r, ok := f.records[k]; ok {
			r.Deleted = true
		}
	}
}
