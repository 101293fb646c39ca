package form

import (
	"strings"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// CheckMandatory walks every selected record in display order and returns the
// first mandatory parameter left unsatisfied.
func (f *Form) CheckMandatory() error {
	for _, r := range f.Records() {
		if !f.active(r) {
			continue
		}
		sub, ok := f.tree.Subheading(r.SubheadingID)
		if !ok {
			continue
		}
		for _, p := range sub.Parameters {
			if !p.Mandatory {
				continue
			}
			key := valueKey(r, p.ID)
			if !f.satisfied(r, p, key) {
				return apperr.Field(apperr.KindValidationFailed, key,
					"%s is required for %s (row %d)", p.Name, sub.Name, r.RowIndex+1)
			}
		}
	}
	return nil
}

func (f *Form) satisfied(r *models.Record, p models.ParameterNode, key models.ValueKey) bool {
	if p.IsFile() {
		return f.tracker.Satisfied(key)
	}
	pv, ok := r.Values[p.ID]
	return ok && strings.TrimSpace(pv.Value) != ""
}

// Validate runs the mandatory check, then per-field rules, then calculation
// errors, and returns the first failure.
func (f *Form) Validate() error {
	if err := f.CheckMandatory(); err != nil {
		return err
	}

	records := f.Records()
	for _, r := range records {
		if !f.active(r) {
			continue
		}
		sub, _ := f.tree.Subheading(r.SubheadingID)
		for _, p := range sub.Parameters {
			pv, ok := r.Values[p.ID]
			if p.IsFile() || !ok {
				continue
			}
			rule := deriveRule(p, f.opts.Selection, r.Selected)
			if err := rule.Check(pv.Value); err != nil {
				return apperr.Field(apperr.KindValidationFailed, valueKey(r, p.ID), "%s: %v", p.Name, err)
			}
		}
	}

	for _, r := range records {
		sub, _ := f.tree.Subheading(r.SubheadingID)
		for _, p := range sub.Parameters {
			if err := f.calcErrs[valueKey(r, p.ID)]; err != nil {
				return err
			}
		}
	}
	return f.calcErr
}
