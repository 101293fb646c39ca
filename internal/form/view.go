package form

import "github.com/fmuoria/recruitment-scoring/internal/models"

// FieldView is one parameter slot as presented to a client
type FieldView struct {
	ParameterID int64              `json:"parameter_id"`
	Name        string             `json:"name"`
	Control     models.ControlKind `json:"control"`
	Value       string             `json:"value,omitempty"`
	FilePath    string             `json:"file_path,omitempty"`
	FilePending bool               `json:"file_pending,omitempty"`
	Editable    bool               `json:"editable"`
	Required    bool               `json:"required"`
	Options     []models.Option    `json:"options,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// RecordView is one record as presented to a client
type RecordView struct {
	ID           *int64             `json:"id,omitempty"`
	SubheadingID int64              `json:"subheading_id"`
	Subheading   string             `json:"subheading"`
	RowIndex     int                `json:"row_index"`
	Selected     bool               `json:"selected"`
	Deleted      bool               `json:"delete_flag"`
	StatusID     int                `json:"status_id"`
	Cap          float64            `json:"cap"`
	Score        models.ScoreTriple `json:"score"`
	Fields       []FieldView        `json:"fields"`
}

// View is a serializable picture of the whole form
type View struct {
	AdvertisementID    int64              `json:"advertisement_id"`
	HeadingID          int64              `json:"heading_id"`
	Heading            string             `json:"heading"`
	Cap                float64            `json:"cap"`
	Owner              models.Owner       `json:"owner"`
	Mode               string             `json:"mode"`
	Score              models.ScoreTriple `json:"score"`
	RepeatCounts       map[int64]int      `json:"repeat_counts,omitempty"`
	UnavailableOptions []int64            `json:"unavailable_options,omitempty"`
	Records            []RecordView       `json:"records"`
}

func (m Mode) String() string {
	if m == ModeScreener {
		return "screener"
	}
	return "candidate"
}

// View renders the form's current state
func (f *Form) View() View {
	v := View{
		AdvertisementID:    f.tree.AdvertisementID,
		HeadingID:          f.tree.Heading.ID,
		Heading:            f.tree.Heading.Name,
		Cap:                f.tree.Heading.Marks,
		Owner:              f.opts.Owner,
		Mode:               f.opts.Mode.String(),
		Score:              f.score,
		UnavailableOptions: f.tree.UnavailableOptions,
	}
	if len(f.counts) > 0 {
		v.RepeatCounts = make(map[int64]int, len(f.counts))
		for k, n := range f.counts {
			v.RepeatCounts[k] = n
		}
	}

	for _, r := range f.Records() {
		sub, _ := f.tree.Subheading(r.SubheadingID)
		rv := RecordView{
			ID:           r.ID,
			SubheadingID: r.SubheadingID,
			Subheading:   sub.Name,
			RowIndex:     r.RowIndex,
			Selected:     r.Selected,
			Deleted:      r.Deleted,
			StatusID:     r.StatusID,
			Cap:          sub.Marks,
			Score:        r.Score,
		}
		for _, p := range sub.Parameters {
			key := valueKey(r, p.ID)
			fv := FieldView{
				ParameterID: p.ID,
				Name:        p.Name,
				Control:     p.Control,
				Editable:    f.Editable(p.ID),
				Required:    deriveRule(p, f.opts.Selection, r.Selected).Required,
				Options:     p.Options,
			}
			if p.IsFile() {
				fv.FilePath = f.FilePath(key)
				fv.FilePending = f.tracker.Get(key).IsPending()
			} else if pv, ok := r.Values[p.ID]; ok {
				fv.Value = pv.Value
			}
			if err := f.calcErrs[key]; err != nil {
				fv.Error = err.Error()
			}
			rv.Fields = append(rv.Fields, fv)
		}
		v.Records = append(v.Records, rv)
	}
	return v
}
