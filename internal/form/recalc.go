package form

import (
	"strconv"
	"strings"
	"time"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/scoring"
)

// recalculate rescores every record and the heading total. It runs after
// every edit and is idempotent.
func (f *Form) recalculate() {
	f.calcErrs = make(map[models.ValueKey]error)
	f.calcErr = nil

	records := f.Records()
	for _, r := range records {
		r.Score = models.ScoreTriple{}
	}

	method := f.tree.Heading.CalcMethod
	if method == 0 {
		f.score = models.ScoreTriple{}
		return
	}

	var (
		items  []scoring.Item
		scored []*models.Record
	)
	for _, r := range records {
		if !f.active(r) {
			continue
		}
		sub, ok := f.tree.Subheading(r.SubheadingID)
		if !ok {
			continue
		}
		items = append(items, f.item(sub, r))
		scored = append(scored, r)
	}

	res, err := scoring.Calculate(method, items, f.tree.Heading.Marks)
	for i, r := range scored {
		if i < len(res.Items) {
			r.Score = res.Items[i]
		}
	}
	f.score = res.Total

	for _, idx := range res.Invalid {
		r := scored[idx]
		key := f.dateKey(r)
		f.calcErrs[key] = apperr.Field(apperr.KindCalculationInvalid, key, "end date is before start date")
	}
	if err != nil && len(res.Invalid) == 0 {
		f.calcErr = err
	}
}

func (f *Form) item(sub *models.SubheadingNode, r *models.Record) scoring.Item {
	it := scoring.Item{
		Weight:   sub.Weightage,
		Cap:      sub.Marks,
		Rejected: r.Rejected(),
	}
	for _, p := range sub.Parameters {
		pv, ok := r.Values[p.ID]
		if !ok {
			continue
		}
		v := strings.TrimSpace(pv.Value)
		switch p.Role {
		case models.RoleInput:
			if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
				it.Input = n
			}
		case models.RoleFromDate:
			it.From = parseDate(v)
		case models.RoleToDate:
			it.To = parseDate(v)
		}
	}
	return it
}

func parseDate(v string) time.Time {
	t, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// dateKey is the slot a duration error is reported on: the end date, or the
// start date when the subheading has no end date column.
func (f *Form) dateKey(r *models.Record) models.ValueKey {
	sub, _ := f.tree.Subheading(r.SubheadingID)
	var from int64
	for _, p := range sub.Parameters {
		switch p.Role {
		case models.RoleToDate:
			return valueKey(r, p.ID)
		case models.RoleFromDate:
			from = p.ID
		}
	}
	return valueKey(r, from)
}
