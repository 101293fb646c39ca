package form

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/attachment"
	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// Mode is who is editing the form
type Mode int

const (
	ModeCandidate Mode = iota
	ModeScreener
)

// WriteOwner is the ownership track a form in this mode writes to
func (m Mode) WriteOwner() models.OwnerFlag {
	if m == ModeScreener {
		return models.OwnerScreener
	}
	return models.OwnerCandidate
}

// Selection is how records come into existence
type Selection int

const (
	// SelectionFixed is one row per subheading (e.g. education)
	SelectionFixed Selection = iota
	// SelectionVariable lets the user pick which subheadings apply
	SelectionVariable
	// SelectionRepeatable keeps a repeat count per subheading
	SelectionRepeatable
)

// Options configure a form
type Options struct {
	Owner     models.Owner
	Mode      Mode
	Selection Selection
	Paths     *attachment.PathBuilder
}

// Form owns the record graph of one heading while it is being edited.
// It is not safe for concurrent use.
type Form struct {
	tree     *models.Tree
	opts     Options
	records  map[models.RecordKey]*models.Record
	counts   map[int64]int
	tracker  *attachment.Tracker
	score    models.ScoreTriple
	calcErrs map[models.ValueKey]error
	calcErr  error
	released []string
}

// New builds a form over tree
func New(tree *models.Tree, opts Options) *Form {
	if opts.Paths == nil {
		opts.Paths = attachment.NewPathBuilder("recruitment")
	}
	f := &Form{
		tree:     tree,
		opts:     opts,
		records:  make(map[models.RecordKey]*models.Record),
		counts:   make(map[int64]int),
		tracker:  attachment.NewTracker(),
		calcErrs: make(map[models.ValueKey]error),
	}
	if opts.Selection == SelectionFixed {
		for _, sub := range tree.Subheadings {
			if hasMandatory(sub) {
				f.ensureRecord(models.RecordKey{SubheadingID: sub.ID})
			}
		}
	}
	f.recalculate()
	return f
}

func hasMandatory(sub models.SubheadingNode) bool {
	for _, p := range sub.Parameters {
		if p.Mandatory {
			return true
		}
	}
	return false
}

// Tree returns the metadata the form was built over
func (f *Form) Tree() *models.Tree { return f.tree }

// Owner returns the candidate the form belongs to
func (f *Form) Owner() models.Owner { return f.opts.Owner }

// Mode returns whether the form edits as candidate or screener
func (f *Form) Mode() Mode { return f.opts.Mode }

// Selection returns how records are chosen within the heading
func (f *Form) Selection() Selection { return f.opts.Selection }

// Score returns the heading total from the last recalculation
func (f *Form) Score() models.ScoreTriple { return f.score }

// Attachments returns the per-slot file tracker
func (f *Form) Attachments() *attachment.Tracker { return f.tracker }

// SetMode switches between candidate and screener editing. Editability and
// rules are derived on every call, so nothing else needs recomputing.
func (f *Form) SetMode(m Mode) { f.opts.Mode = m }

// Record returns the record at key
func (f *Form) Record(key models.RecordKey) (*models.Record, bool) {
	r, ok := f.records[key]
	return r, ok
}

// Records returns all records ordered by subheading display order, then row
func (f *Form) Records() []*models.Record {
	order := make(map[int64]int, len(f.tree.Subheadings))
	for i, s := range f.tree.Subheadings {
		order[s.ID] = i
	}
	out := make([]*models.Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if order[a.SubheadingID] != order[b.SubheadingID] {
			return order[a.SubheadingID] < order[b.SubheadingID]
		}
		return a.RowIndex < b.RowIndex
	})
	return out
}

// RepeatCount returns the current row count of a repeatable subheading
func (f *Form) RepeatCount(subheadingID int64) int {
	return f.counts[subheadingID]
}

// ReleasedPaths drains the stored paths released by shrinking repeat counts
func (f *Form) ReleasedPaths() []string {
	out := f.released
	f.released = nil
	return out
}

func (f *Form) ensureRecord(key models.RecordKey) *models.Record {
	if r, ok := f.records[key]; ok {
		return r
	}
	r := &models.Record{
		Owner:        f.opts.Owner,
		SubheadingID: key.SubheadingID,
		RowIndex:     key.RowIndex,
		Selected:     f.opts.Selection != SelectionVariable,
		Values:       make(map[int64]*models.ParameterValue),
	}
	f.records[key] = r
	return r
}

// SetRepeatCount materializes rows [0, n) of a repeatable subheading and
// removes rows beyond n, releasing their files.
func (f *Form) SetRepeatCount(subheadingID int64, n int) error {
	if f.opts.Selection != SelectionRepeatable {
		return apperr.New(apperr.KindValidationFailed, "subheading %d is not repeatable", subheadingID)
	}
	if _, ok := f.tree.Subheading(subheadingID); !ok {
		return apperr.New(apperr.KindValidationFailed, "unknown subheading %d", subheadingID)
	}
	if n < 0 {
		return apperr.New(apperr.KindValidationFailed, "repeat count must not be negative, got %d", n)
	}

	f.counts[subheadingID] = n
	for row := 0; row < n; row++ {
		f.ensureRecord(models.RecordKey{SubheadingID: subheadingID, RowIndex: row})
	}
	for key := range f.records {
		if key.SubheadingID == subheadingID && key.RowIndex >= n {
			delete(f.records, key)
		}
	}
	f.released = append(f.released, f.tracker.ReleaseRows(subheadingID, n)...)
	f.recalculate()
	return nil
}

// Select toggles a subheading in a variable-selection form. Deselecting keeps
// the record so its id survives until submit.
func (f *Form) Select(subheadingID int64, selected bool) error {
	if f.opts.Selection != SelectionVariable {
		return apperr.New(apperr.KindValidationFailed, "subheading %d is not selectable", subheadingID)
	}
	if _, ok := f.tree.Subheading(subheadingID); !ok {
		return apperr.New(apperr.KindValidationFailed, "unknown subheading %d", subheadingID)
	}
	r := f.ensureRecord(models.RecordKey{SubheadingID: subheadingID})
	r.Selected = selected
	if selected {
		r.Deleted = false
	}
	f.recalculate()
	return nil
}

// SetStatus records a verification status on a record
func (f *Form) SetStatus(key models.RecordKey, statusID int) error {
	if f.opts.Mode != ModeScreener {
		return apperr.New(apperr.KindValidationFailed, "verification status can only be set while screening")
	}
	r, ok := f.records[key]
	if !ok {
		return apperr.New(apperr.KindValidationFailed, "no record at %s", key)
	}
	r.StatusID = statusID
	f.recalculate()
	return nil
}

// Editable reports whether parameterID accepts input in the current mode
func (f *Form) Editable(parameterID int64) bool {
	p, _, ok := f.tree.Parameter(parameterID)
	if !ok {
		return false
	}
	if f.opts.Mode == ModeCandidate {
		return true
	}
	return p.ScreeningInput || p.IsCalculationColumn()
}

// Rule returns the edit rule of a parameter slot
func (f *Form) Rule(key models.ValueKey) (Rule, error) {
	p, sub, ok := f.tree.Parameter(key.ParameterID)
	if !ok || sub.ID != key.SubheadingID {
		return Rule{}, apperr.New(apperr.KindValidationFailed, "parameter %d does not belong to subheading %d", key.ParameterID, key.SubheadingID)
	}
	selected := false
	if r, ok := f.records[key.RecordKey]; ok {
		selected = r.Selected
	}
	return deriveRule(*p, f.opts.Selection, selected), nil
}

// slot resolves and checks the target of an edit, creating the record when allowed
func (f *Form) slot(key models.ValueKey) (*models.ParameterNode, *models.Record, error) {
	p, sub, ok := f.tree.Parameter(key.ParameterID)
	if !ok || sub.ID != key.SubheadingID {
		return nil, nil, apperr.Field(apperr.KindValidationFailed, key, "parameter %d does not belong to subheading %d", key.ParameterID, key.SubheadingID)
	}
	if !f.Editable(p.ID) {
		return nil, nil, apperr.Field(apperr.KindValidationFailed, key, "%s is read-only", p.Name)
	}

	r, ok := f.records[key.RecordKey]
	if ok {
		r.Deleted = false
	}
	switch f.opts.Selection {
	case SelectionFixed:
		if key.RowIndex != 0 {
			return nil, nil, apperr.Field(apperr.KindValidationFailed, key, "row %d does not exist", key.RowIndex)
		}
		if !ok {
			r = f.ensureRecord(key.RecordKey)
		}
	case SelectionVariable:
		if !ok || !r.Selected {
			return nil, nil, apperr.Field(apperr.KindValidationFailed, key, "subheading %d is not selected", key.SubheadingID)
		}
	case SelectionRepeatable:
		if !ok {
			return nil, nil, apperr.Field(apperr.KindValidationFailed, key, "row %d does not exist", key.RowIndex)
		}
	}
	return p, r, nil
}

// SetValue stores a scalar value and recalculates. The value is kept even
// when it breaks the slot's rule; the violation is returned.
func (f *Form) SetValue(key models.ValueKey, value string) error {
	p, r, err := f.slot(key)
	if err != nil {
		return err
	}
	if p.IsFile() {
		return apperr.Field(apperr.KindValidationFailed, key, "%s takes a file", p.Name)
	}

	pv, ok := r.Values[p.ID]
	if !ok {
		pv = &models.ParameterValue{ParameterID: p.ID, RowIndex: r.RowIndex, RecordID: r.ID}
		r.Values[p.ID] = pv
	}
	pv.Value = value
	f.recalculate()

	rule := deriveRule(*p, f.opts.Selection, r.Selected)
	if err := rule.Check(value); err != nil {
		return apperr.Field(apperr.KindValidationFailed, key, "%s: %v", p.Name, err)
	}
	if err := f.calcErrs[key]; err != nil {
		return err
	}
	return nil
}

// AttachFile sets a pending upload on a file parameter
func (f *Form) AttachFile(key models.ValueKey, file models.FileHandle) error {
	p, _, err := f.slot(key)
	if err != nil {
		return err
	}
	if !p.IsFile() {
		return apperr.Field(apperr.KindValidationFailed, key, "%s does not take a file", p.Name)
	}
	if strings.TrimSpace(file.Name) == "" {
		return apperr.Field(apperr.KindValidationFailed, key, "%s: file name is required", p.Name)
	}
	if err := attachment.CheckSize(file.Size(), p.SizeLimitKB); err != nil {
		return apperr.Field(apperr.KindValidationFailed, key, "%s: %v", p.Name, err)
	}
	f.tracker.Attach(key, file)
	return nil
}

// ClearFile drops a pending upload, restoring the file it displaced. Without a
// pending upload the stored file itself is detached.
func (f *Form) ClearFile(key models.ValueKey) error {
	if _, _, err := f.slot(key); err != nil {
		return err
	}
	if f.tracker.Get(key).IsPending() {
		f.tracker.Withdraw(key)
		return nil
	}
	if path := f.tracker.Remove(key); path != "" {
		f.released = append(f.released, path)
	}
	return nil
}

// FilePath is the path a slot's file has or will have once saved
func (f *Form) FilePath(key models.ValueKey) string {
	a := f.tracker.Get(key)
	switch {
	case a.IsPending():
		return f.opts.Paths.Path(attachment.PathInput{
			RegistrationNo: f.opts.Owner.RegistrationNo,
			SubheadingID:   key.SubheadingID,
			ScoreFieldID:   f.tree.Heading.ID,
			ParameterID:    key.ParameterID,
			RowIndex:       key.RowIndex,
			OriginalName:   a.Pending().Name,
		})
	case a.IsStored():
		return a.StoredPath()
	default:
		return ""
	}
}

func (f *Form) active(r *models.Record) bool {
	return r.Selected && !r.Deleted
}

func valueKey(r *models.Record, parameterID int64) models.ValueKey {
	return models.ValueKey{RecordKey: r.Key(), ParameterID: parameterID}
}

// String describes the form for logs
func (f *Form) String() string {
	return fmt.Sprintf("form(heading=%d, records=%d)", f.tree.Heading.ID, len(f.records))
}
