package models

// PersistedValue is one previously saved parameter value row
type PersistedValue struct {
	DetailID         int64       `json:"detail_id"`
	ParameterValueID int64       `json:"parameter_value_id"`
	SubheadingID     int64       `json:"subheading_id"`
	ParameterID      int64       `json:"parameter_id"`
	RowIndex         int         `json:"row_index"`
	Value            string      `json:"value"`
	Owner            OwnerFlag   `json:"owner_flag"`
	StatusID         int         `json:"status_id"`
	Score            ScoreTriple `json:"score"`
}

// DraftValue is a resolved, non-empty value ready for reconciliation
type DraftValue struct {
	ParameterID int64       `json:"parameter_id"`
	Value       string      `json:"value"` // scalar, or the file path for file parameters
	IsFile      bool        `json:"is_file"`
	Pending     *FileHandle `json:"-"`
	UploadSeq   uint64      `json:"-"` // identifies Pending within its form
}

// DraftRecord is a read-only view of one in-memory record
type DraftRecord struct {
	Key      RecordKey    `json:"key"`
	Selected bool         `json:"selected"`
	StatusID int          `json:"status_id"`
	Score    ScoreTriple  `json:"score"`
	Values   []DraftValue `json:"values"`
}

// Empty reports whether the draft carries no resolved value
func (d DraftRecord) Empty() bool {
	return len(d.Values) == 0
}

// DetailPayload is one outgoing record row
type DetailPayload struct {
	DetailID       int64       `json:"detail_id,omitempty"`
	RegistrationNo string      `json:"registration_no"`
	ApplicationID  int64       `json:"application_id"`
	HeadingID      int64       `json:"heading_id"`
	SubheadingID   int64       `json:"subheading_id"`
	RowIndex       int         `json:"row_index"`
	StatusID       int         `json:"status_id"`
	Score          ScoreTriple `json:"score"`
	DeleteFlag     bool        `json:"delete_flag"`
	Owner          OwnerFlag   `json:"owner_flag"`
}

// ParameterPayload is one outgoing parameter value row
type ParameterPayload struct {
	ParameterValueID int64  `json:"parameter_value_id,omitempty"`
	DetailID         int64  `json:"detail_id,omitempty"`
	SubheadingID     int64  `json:"subheading_id"`
	RowIndex         int    `json:"row_index"`
	ParameterID      int64  `json:"parameter_id"`
	Value            string `json:"value"`
	IsFile           bool   `json:"is_file"`
}

// FileUpload is a pending file written under its generated path
type FileUpload struct {
	Path string     `json:"path"`
	File FileHandle `json:"file"`
}

// ParentScore is the heading-level score sent with a save
type ParentScore struct {
	RegistrationNo string      `json:"registration_no"`
	ApplicationID  int64       `json:"application_id"`
	HeadingID      int64       `json:"heading_id"`
	Owner          OwnerFlag   `json:"owner_flag"`
	Score          ScoreTriple `json:"score"`
}

// SaveRequest is the save collaborator's input
type SaveRequest struct {
	ParentScore   ParentScore        `json:"parent_score"`
	DetailList    []DetailPayload    `json:"detail_list"`
	ParameterList []ParameterPayload `json:"parameter_list"`
	Files         []FileUpload       `json:"files"`
}

// AssignedDetail maps a record key to its database id
type AssignedDetail struct {
	Key      RecordKey `json:"key"`
	DetailID int64     `json:"detail_id"`
}

// AssignedParameter maps a value key to its database id
type AssignedParameter struct {
	Key              ValueKey `json:"key"`
	ParameterValueID int64    `json:"parameter_value_id"`
}

// SaveResult carries the ids assigned by a successful save
type SaveResult struct {
	Details    []AssignedDetail    `json:"details"`
	Parameters []AssignedParameter `json:"parameters"`
}

// ErrorEnvelope is the server-side error shape of a failed save
type ErrorEnvelope struct {
	Message string `json:"message"`
}

// SaveResponse is either an error envelope or a result
type SaveResponse struct {
	Error  *ErrorEnvelope `json:"error,omitempty"`
	Result SaveResult     `json:"result"`
}
