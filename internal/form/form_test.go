package form

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/attachment"
	"github.com/fmuoria/recruitment-scoring/internal/models"
)

var owner = models.Owner{RegistrationNo: "24000001", ApplicationID: 9}

func param(id, parent int64, name string, mod func(*models.MetadataNode)) models.ParameterNode {
	n := models.MetadataNode{ID: id, ParentID: parent, Kind: models.KindParameter, Name: name, Control: models.ControlText, DataType: models.DataText}
	if mod != nil {
		mod(&n)
	}
	return models.ParameterNode{MetadataNode: n}
}

func educationTree() *models.Tree {
	return &models.Tree{
		AdvertisementID: 5,
		Heading:         models.MetadataNode{ID: 1, Kind: models.KindHeading, Name: "Education", Marks: 20, CalcMethod: models.MethodWeightedMarks},
		Subheadings: []models.SubheadingNode{
			{
				MetadataNode: models.MetadataNode{ID: 10, ParentID: 1, Kind: models.KindSubheading, Name: "Matric", Marks: 15, Weightage: 1.5},
				Parameters: []models.ParameterNode{
					param(101, 10, "Percentage", func(n *models.MetadataNode) {
						n.Mandatory, n.Role, n.DataType, n.Control = true, models.RoleInput, models.DataNumeric, models.ControlNumber
					}),
					param(102, 10, "Certificate", func(n *models.MetadataNode) {
						n.Mandatory, n.Control, n.DataType, n.SizeLimitKB = true, models.ControlFile, models.DataFile, 1
					}),
					param(103, 10, "Board", func(n *models.MetadataNode) { n.Control = models.ControlAlphaText }),
					param(104, 10, "Remarks", func(n *models.MetadataNode) { n.ScreeningInput = true }),
				},
			},
			{
				MetadataNode: models.MetadataNode{ID: 11, ParentID: 1, Kind: models.KindSubheading, Name: "Graduation", Marks: 10, Weightage: 1},
				Parameters: []models.ParameterNode{
					param(111, 11, "Percentage", func(n *models.MetadataNode) { n.Role, n.DataType = models.RoleInput, models.DataNumeric }),
				},
			},
		},
	}
}

func experienceTree() *models.Tree {
	return &models.Tree{
		AdvertisementID: 5,
		Heading:         models.MetadataNode{ID: 2, Kind: models.KindHeading, Name: "Experience", Marks: 10, CalcMethod: models.MethodDateDuration},
		Subheadings: []models.SubheadingNode{
			{
				MetadataNode: models.MetadataNode{ID: 20, ParentID: 2, Kind: models.KindSubheading, Name: "Employment", Marks: 3, Weightage: 1},
				Parameters: []models.ParameterNode{
					param(201, 20, "From", func(n *models.MetadataNode) {
						n.Role, n.DataType, n.Control = models.RoleFromDate, models.DataDate, models.ControlDate
					}),
					param(202, 20, "To", func(n *models.MetadataNode) {
						n.Role, n.DataType, n.Control = models.RoleToDate, models.DataDate, models.ControlDate
					}),
					param(203, 20, "Letter", func(n *models.MetadataNode) { n.Control, n.DataType = models.ControlFile, models.DataFile }),
				},
			},
		},
	}
}

func key(sub int64, row int, p int64) models.ValueKey {
	return models.ValueKey{RecordKey: models.RecordKey{SubheadingID: sub, RowIndex: row}, ParameterID: p}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	got, ok := apperr.KindOf(err)
	require.True(t, ok, "expected classified error, got %v", err)
	assert.Equal(t, kind, got)
}

func TestNew_FixedCreatesMandatoryRows(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})

	_, ok := f.Record(models.RecordKey{SubheadingID: 10})
	assert.True(t, ok, "subheading with mandatory parameter has row 0")
	_, ok = f.Record(models.RecordKey{SubheadingID: 11})
	assert.False(t, ok)
}

func TestSetValue_RecalculatesWeightedMarks(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})

	require.NoError(t, f.SetValue(key(10, 0, 101), "86.1"))

	r, _ := f.Record(models.RecordKey{SubheadingID: 10})
	assert.InDelta(t, 86.1, r.Score.Raw, 1e-9)
	assert.InDelta(t, 12.915, r.Score.Actual, 1e-9)
	assert.InDelta(t, 12.915, r.Score.Calculated, 1e-9)
	assert.InDelta(t, 12.915, f.Score().Calculated, 1e-9)

	require.NoError(t, f.SetValue(key(11, 0, 111), "90"))
	assert.InDelta(t, 20.0, f.Score().Calculated, 1e-9, "parent total capped at heading marks")
}

func TestSetValue_RuleViolations(t *testing.T) {
	tests := []struct {
		name    string
		key     models.ValueKey
		value   string
		wantErr bool
	}{
		{name: "percentage in range", key: key(10, 0, 101), value: "99.5"},
		{name: "percentage above 100", key: key(10, 0, 101), value: "120", wantErr: true},
		{name: "percentage negative", key: key(10, 0, 101), value: "-1", wantErr: true},
		{name: "percentage three decimals", key: key(10, 0, 101), value: "86.123", wantErr: true},
		{name: "percentage not a number", key: key(10, 0, 101), value: "abc", wantErr: true},
		{name: "board letters and parens", key: key(10, 0, 103), value: "Board (CBSE)"},
		{name: "board with punctuation", key: key(10, 0, 103), value: "St. Mary", wantErr: true},
		{name: "optional board left empty", key: key(10, 0, 103), value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(educationTree(), Options{Owner: owner})
			err := f.SetValue(tt.key, tt.value)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, apperr.KindValidationFailed)
			field, ok := apperr.FieldOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.key, field)

			r, _ := f.Record(tt.key.RecordKey)
			assert.Equal(t, tt.value, r.Values[tt.key.ParameterID].Value, "invalid value is kept for correction")
		})
	}
}

func TestSetValue_FixedRejectsOtherRows(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})
	requireKind(t, f.SetValue(key(10, 1, 101), "50"), apperr.KindValidationFailed)
}

func TestCheckMandatory_FirstViolation(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})

	field, ok := apperr.FieldOf(f.CheckMandatory())
	require.True(t, ok)
	assert.Equal(t, key(10, 0, 101), field)

	require.NoError(t, f.SetValue(key(10, 0, 101), "70"))
	field, ok = apperr.FieldOf(f.CheckMandatory())
	require.True(t, ok)
	assert.Equal(t, key(10, 0, 102), field, "file parameter unsatisfied until attached")

	require.NoError(t, f.AttachFile(key(10, 0, 102), models.FileHandle{Name: "cert.pdf", Data: []byte("pdf")}))
	assert.NoError(t, f.CheckMandatory())
	assert.NoError(t, f.Validate())
}

func TestCheckMandatory_StoredFileSatisfies(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})
	f.Prefill([]models.PersistedValue{
		{DetailID: 7, ParameterValueID: 70, SubheadingID: 10, ParameterID: 101, Value: "70"},
		{DetailID: 7, ParameterValueID: 71, SubheadingID: 10, ParameterID: 102, Value: "recruitment/24000001/old.pdf"},
	}, true)

	assert.NoError(t, f.CheckMandatory())
}

func TestAttachFile_SizeLimit(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})

	err := f.AttachFile(key(10, 0, 102), models.FileHandle{Name: "big.pdf", Data: bytes.Repeat([]byte("x"), 2048)})
	requireKind(t, err, apperr.KindValidationFailed)
	assert.False(t, f.Attachments().Satisfied(key(10, 0, 102)))
}

func TestClearFile_RestoresStoredFile(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})
	f.Prefill([]models.PersistedValue{
		{DetailID: 7, SubheadingID: 10, ParameterID: 102, Value: "recruitment/24000001/old.pdf"},
	}, true)
	k := key(10, 0, 102)

	require.NoError(t, f.AttachFile(k, models.FileHandle{Name: "new.pdf", Data: []byte("n")}))
	assert.True(t, f.Attachments().Get(k).IsPending())

	require.NoError(t, f.ClearFile(k))
	assert.Equal(t, "recruitment/24000001/old.pdf", f.FilePath(k))

	require.NoError(t, f.ClearFile(k))
	assert.False(t, f.Attachments().Satisfied(k))
	assert.Equal(t, []string{"recruitment/24000001/old.pdf"}, f.ReleasedPaths())
}

func TestEditable_ByMode(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})
	for _, id := range []int64{101, 102, 103, 104} {
		assert.True(t, f.Editable(id), "candidate edits parameter %d", id)
	}

	f.SetMode(ModeScreener)
	assert.True(t, f.Editable(101), "calculation column")
	assert.False(t, f.Editable(102))
	assert.False(t, f.Editable(103))
	assert.True(t, f.Editable(104), "screening input")
	assert.False(t, f.Editable(999))

	requireKind(t, f.SetValue(key(10, 0, 103), "CBSE"), apperr.KindValidationFailed)
	assert.NoError(t, f.SetValue(key(10, 0, 104), "checked"))
}

func TestSetStatus_RejectedZeroesScore(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner, Mode: ModeScreener})
	require.NoError(t, f.SetValue(key(10, 0, 101), "80"))
	require.NoError(t, f.SetValue(key(11, 0, 111), "50"))
	assert.InDelta(t, 17.0, f.Score().Calculated, 1e-9)

	require.NoError(t, f.SetStatus(models.RecordKey{SubheadingID: 10}, models.StatusRejected))

	r, _ := f.Record(models.RecordKey{SubheadingID: 10})
	assert.Equal(t, models.ScoreTriple{}, r.Score)
	assert.InDelta(t, 5.0, f.Score().Calculated, 1e-9, "rejected record excluded from the total")
}

func TestSetStatus_CandidateModeRefused(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})
	requireKind(t, f.SetStatus(models.RecordKey{SubheadingID: 10}, models.StatusRejected), apperr.KindValidationFailed)
}

func TestVariableSelection(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner, Selection: SelectionVariable})
	k := key(11, 0, 111)

	requireKind(t, f.SetValue(k, "60"), apperr.KindValidationFailed)
	assert.NoError(t, f.CheckMandatory(), "nothing selected, nothing required")

	require.NoError(t, f.Select(11, true))
	require.NoError(t, f.SetValue(k, "60"))
	assert.InDelta(t, 6.0, f.Score().Calculated, 1e-9)

	require.NoError(t, f.Select(10, true))
	rule, err := f.Rule(key(10, 0, 101))
	require.NoError(t, err)
	assert.True(t, rule.Required)
	assert.Error(t, f.CheckMandatory())

	require.NoError(t, f.Select(10, false))
	rule, _ = f.Rule(key(10, 0, 101))
	assert.False(t, rule.Required, "deselected subheading is not required")

	require.NoError(t, f.Select(11, false))
	r, ok := f.Record(models.RecordKey{SubheadingID: 11})
	require.True(t, ok, "deselect keeps the record")
	assert.Equal(t, "60", r.Values[111].Value)
	assert.Zero(t, f.Score().Calculated)

	for _, d := range f.Drafts() {
		assert.False(t, d.Selected)
	}
}

func TestRepeatable_DurationAndInvalidDates(t *testing.T) {
	f := New(experienceTree(), Options{Owner: owner, Selection: SelectionRepeatable})
	require.NoError(t, f.SetRepeatCount(20, 2))

	require.NoError(t, f.SetValue(key(20, 0, 201), "2018-06-01"))
	require.NoError(t, f.SetValue(key(20, 0, 202), "2024-06-11"))

	r0, _ := f.Record(models.RecordKey{SubheadingID: 20, RowIndex: 0})
	assert.Equal(t, 2202.0, r0.Score.Raw)
	assert.InDelta(t, 6.0287, r0.Score.Actual, 1e-9)
	assert.InDelta(t, 3.0, r0.Score.Calculated, 1e-9)

	require.NoError(t, f.SetValue(key(20, 1, 201), "2020-01-01"))
	err := f.SetValue(key(20, 1, 202), "2019-01-01")
	requireKind(t, err, apperr.KindCalculationInvalid)
	field, _ := apperr.FieldOf(err)
	assert.Equal(t, key(20, 1, 202), field)

	r1, _ := f.Record(models.RecordKey{SubheadingID: 20, RowIndex: 1})
	assert.Equal(t, models.ScoreTriple{}, r1.Score)
	requireKind(t, f.Validate(), apperr.KindCalculationInvalid)

	require.NoError(t, f.SetValue(key(20, 1, 202), "2021-01-01"))
	assert.NoError(t, f.Validate())
}

func TestSetRepeatCount_ShrinkReleasesFiles(t *testing.T) {
	f := New(experienceTree(), Options{Owner: owner, Selection: SelectionRepeatable})
	f.Prefill([]models.PersistedValue{
		{DetailID: 1, SubheadingID: 20, RowIndex: 0, ParameterID: 201, Value: "2019-01-01"},
		{DetailID: 2, SubheadingID: 20, RowIndex: 1, ParameterID: 203, Value: "recruitment/24000001/letter.pdf"},
	}, true)
	assert.Equal(t, 2, f.RepeatCount(20))

	require.NoError(t, f.SetRepeatCount(20, 1))

	_, ok := f.Record(models.RecordKey{SubheadingID: 20, RowIndex: 1})
	assert.False(t, ok)
	assert.Equal(t, []string{"recruitment/24000001/letter.pdf"}, f.ReleasedPaths())
	assert.Empty(t, f.ReleasedPaths(), "released paths drained once")

	requireKind(t, f.SetRepeatCount(20, -1), apperr.KindValidationFailed)
}

func TestDrafts_ResolvedValuesOnly(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner, Paths: attachment.NewPathBuilder("recruitment")})
	require.NoError(t, f.SetValue(key(10, 0, 101), "75"))
	require.NoError(t, f.SetValue(key(10, 0, 103), "  "))
	require.NoError(t, f.AttachFile(key(10, 0, 102), models.FileHandle{Name: "My File (1).pdf", Data: []byte("x")}))

	drafts := f.Drafts()
	require.Len(t, drafts, 1)
	d := drafts[0]
	assert.True(t, d.Selected)
	require.Len(t, d.Values, 2, "blank board omitted")

	assert.Equal(t, models.DraftValue{ParameterID: 101, Value: "75"}, d.Values[0])
	assert.True(t, d.Values[1].IsFile)
	assert.Equal(t, "recruitment/24000001/24000001_10_1_102_0_My_File_1_.pdf", d.Values[1].Value)
	require.NotNil(t, d.Values[1].Pending)
	assert.Equal(t, "My File (1).pdf", d.Values[1].Pending.Name)
}

func TestPrefill_ForeignTrackCarriesNoIDs(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner, Mode: ModeScreener})
	f.Prefill([]models.PersistedValue{
		{DetailID: 7, ParameterValueID: 70, SubheadingID: 10, ParameterID: 101, Value: "70", Owner: models.OwnerCandidate},
		{DetailID: 8, ParameterValueID: 80, SubheadingID: 99, ParameterID: 999, Value: "ignored"},
	}, false)

	r, ok := f.Record(models.RecordKey{SubheadingID: 10})
	require.True(t, ok)
	assert.Nil(t, r.ID)
	assert.Nil(t, r.Values[101].ID)
	assert.Equal(t, "70", r.Values[101].Value)
	assert.InDelta(t, 10.5, f.Score().Calculated, 1e-9)
}

func TestApplySaved_WritesBackIDs(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})
	require.NoError(t, f.SetValue(key(10, 0, 101), "75"))
	require.NoError(t, f.AttachFile(key(10, 0, 102), models.FileHandle{Name: "c.pdf", Data: []byte("x")}))
	drafts := f.Drafts()

	f.ApplySaved(models.SaveResult{
		Details:    []models.AssignedDetail{{Key: models.RecordKey{SubheadingID: 10}, DetailID: 42}},
		Parameters: []models.AssignedParameter{{Key: key(10, 0, 101), ParameterValueID: 420}},
	}, drafts, nil)

	r, _ := f.Record(models.RecordKey{SubheadingID: 10})
	require.NotNil(t, r.ID)
	assert.Equal(t, int64(42), *r.ID)
	require.NotNil(t, r.Values[101].ID)
	assert.Equal(t, int64(420), *r.Values[101].ID)

	a := f.Attachments().Get(key(10, 0, 102))
	assert.True(t, a.IsStored())
	assert.Equal(t, "recruitment/24000001/24000001_10_1_102_0_c.pdf", a.StoredPath())
}

func TestApplySaved_KeepsNewerUploadPending(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner})
	k := key(10, 0, 102)
	require.NoError(t, f.SetValue(key(10, 0, 101), "75"))
	require.NoError(t, f.AttachFile(k, models.FileHandle{Name: "old.pdf", Data: []byte("o")}))
	drafts := f.Drafts()

	// replaced while the first save was in flight
	require.NoError(t, f.AttachFile(k, models.FileHandle{Name: "new.pdf", Data: []byte("n")}))
	f.ApplySaved(models.SaveResult{
		Details: []models.AssignedDetail{{Key: models.RecordKey{SubheadingID: 10}, DetailID: 42}},
	}, drafts, nil)

	a := f.Attachments().Get(k)
	require.True(t, a.IsPending())
	assert.Equal(t, "new.pdf", a.Pending().Name)

	next := f.Drafts()
	require.Len(t, next, 1)
	var file models.DraftValue
	for _, v := range next[0].Values {
		if v.ParameterID == 102 {
			file = v
		}
	}
	require.NotNil(t, file.Pending, "newer upload goes out with the next save")
	assert.Equal(t, "new.pdf", file.Pending.Name)
}

func TestView(t *testing.T) {
	f := New(educationTree(), Options{Owner: owner, Mode: ModeScreener})
	require.NoError(t, f.SetValue(key(10, 0, 101), "80"))

	v := f.View()
	assert.Equal(t, "screener", v.Mode)
	assert.Equal(t, int64(1), v.HeadingID)
	require.Len(t, v.Records, 1)
	rv := v.Records[0]
	assert.Equal(t, "Matric", rv.Subheading)
	require.Len(t, rv.Fields, 4)
	assert.Equal(t, "80", rv.Fields[0].Value)
	assert.True(t, rv.Fields[0].Editable)
	assert.True(t, rv.Fields[0].Required)
	assert.False(t, rv.Fields[2].Editable)
}
