package models

import "fmt"

// OwnerFlag identifies the authorship track of persisted rows
type OwnerFlag string

const (
	OwnerCandidate OwnerFlag = "C"
	OwnerScreener  OwnerFlag = "S"
)

// Verification status ids. StatusRejected zeroes a record's score.
const (
	StatusPending  = 0
	StatusVerified = 1
	StatusRejected = 2
)

// Owner identifies the application a record belongs to
type Owner struct {
	RegistrationNo string `json:"registration_no"`
	ApplicationID  int64  `json:"application_id"`
}

// RecordKey is the composite business key of a record
type RecordKey struct {
	SubheadingID int64 `json:"subheading_id"`
	RowIndex     int   `json:"row_index"`
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%d#%d", k.SubheadingID, k.RowIndex)
}

// ValueKey addresses one parameter slot of one record
type ValueKey struct {
	RecordKey
	ParameterID int64 `json:"parameter_id"`
}

func (k ValueKey) String() string {
	return fmt.Sprintf("%d#%d#%d", k.SubheadingID, k.RowIndex, k.ParameterID)
}

// ScoreTriple is the materialized score at item or parent level
type ScoreTriple struct {
	Raw        float64 `json:"raw_value"`
	Actual     float64 `json:"actual_value"`
	Calculated float64 `json:"calculated_value"`
}

// Record is one candidate instance of a subheading row
type Record struct {
	ID           *int64                    `json:"id,omitempty"`
	Owner        Owner                     `json:"owner"`
	SubheadingID int64                     `json:"subheading_id"`
	RowIndex     int                       `json:"row_index"`
	Selected     bool                      `json:"selected"`
	Deleted      bool                      `json:"delete_flag"`
	StatusID     int                       `json:"status_id"`
	Score        ScoreTriple               `json:"score"`
	Values       map[int64]*ParameterValue `json:"values"`
}

// Key returns the record's composite key
func (r *Record) Key() RecordKey {
	return RecordKey{SubheadingID: r.SubheadingID, RowIndex: r.RowIndex}
}

// Rejected reports whether verification rejected the record
func (r *Record) Rejected() bool {
	return r.StatusID == StatusRejected
}

// ParameterValue is one scalar value bound to a record and parameter.
// File-kind parameters keep their state in an Attachment instead.
type ParameterValue struct {
	ID          *int64 `json:"id,omitempty"`
	RecordID    *int64 `json:"record_id,omitempty"`
	ParameterID int64  `json:"parameter_id"`
	RowIndex    int    `json:"row_index"`
	Value       string `json:"value"`
}

// FileHandle is an in-memory upload awaiting persistence
type FileHandle struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"-"`
}

// Size returns the file size in bytes
func (f *FileHandle) Size() int64 {
	if f == nil {
		return 0
	}
	return int64(len(f.Data))
}

// Attachment holds either a pending upload or a stored path, never both
type Attachment struct {
	pending *FileHandle
	stored  string
}

// PendingAttachment wraps an in-memory upload
func PendingAttachment(f FileHandle) Attachment {
	return Attachment{pending: &f}
}

// StoredAttachment wraps a previously stored path
func StoredAttachment(path string) Attachment {
	return Attachment{stored: path}
}

// Pending returns the upload, or nil when the attachment is not pending
func (a Attachment) Pending() *FileHandle { return a.pending }

// StoredPath returns the saved path; empty unless stored
func (a Attachment) StoredPath() string { return a.stored }

// IsPending reports an upload not yet saved
func (a Attachment) IsPending() bool { return a.pending != nil }

// IsStored reports a saved file with no upload over it
func (a Attachment) IsStored() bool { return a.pending == nil && a.stored != "" }

// IsEmpty reports no file at all
func (a Attachment) IsEmpty() bool { return a.pending == nil && a.stored == "" }
