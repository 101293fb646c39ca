package models

// NodeKind tags the level of a metadata node
type NodeKind int

const (
	KindHeading NodeKind = iota + 1
	KindSubheading
	KindParameter
)

func (k NodeKind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindSubheading:
		return "subheading"
	case KindParameter:
		return "parameter"
	default:
		return "unknown"
	}
}

// CalcMethod selects the scoring strategy of a heading
type CalcMethod int

const (
	MethodWeightedMarks CalcMethod = 1
	MethodDateDuration  CalcMethod = 2
	MethodQuantity      CalcMethod = 3
)

// ControlKind is the input control a parameter is rendered with
type ControlKind string

const (
	ControlText      ControlKind = "text"
	ControlAlphaText ControlKind = "alphatext" // letters, spaces and parentheses only
	ControlDate      ControlKind = "date"
	ControlDropdown  ControlKind = "dropdown"
	ControlFile      ControlKind = "file"
	ControlNumber    ControlKind = "number"
)

// DataType is the declared datatype of a parameter
type DataType string

const (
	DataText    DataType = "text"
	DataNumeric DataType = "numeric"
	DataDate    DataType = "date"
	DataFile    DataType = "file"
)

// CalcRole marks parameters that feed the scoring calculator
type CalcRole string

const (
	RoleNone     CalcRole = ""
	RoleInput    CalcRole = "input" // percentage or quantity column
	RoleFromDate CalcRole = "from_date"
	RoleToDate   CalcRole = "to_date"
)

// DateLayout is the wire format of date-kind parameter values
const DateLayout = "2006-01-02"

// MetadataNode is one heading, subheading or parameter definition
type MetadataNode struct {
	ID             int64       `json:"id"`
	ParentID       int64       `json:"parent_id"`
	Kind           NodeKind    `json:"kind"`
	Name           string      `json:"name"`
	DisplayOrder   int         `json:"display_order"`
	Marks          float64     `json:"marks"`     // cap
	Weightage      float64     `json:"weightage"` // multiplier
	Mandatory      bool        `json:"mandatory"`
	CalcMethod     CalcMethod  `json:"calc_method,omitempty"`
	Control        ControlKind `json:"control,omitempty"`
	DataType       DataType    `json:"data_type,omitempty"`
	SizeLimitKB    int         `json:"size_limit_kb,omitempty"`
	OptionListID   int64       `json:"option_list_id,omitempty"`
	Role           CalcRole    `json:"role,omitempty"`
	ScreeningInput bool        `json:"screening_input,omitempty"`
}

// IsFile reports whether the node is a file-kind parameter
func (n MetadataNode) IsFile() bool {
	return n.Control == ControlFile || n.DataType == DataFile
}

// IsCalculationColumn reports whether the node is the percentage/quantity column
func (n MetadataNode) IsCalculationColumn() bool {
	return n.Role == RoleInput
}

// Option is one entry of a dropdown option list
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ParameterNode is a parameter with its resolved option list
type ParameterNode struct {
	MetadataNode
	Options []Option `json:"options,omitempty"`
}

// SubheadingNode is a subheading with its ordered parameters
type SubheadingNode struct {
	MetadataNode
	Parameters []ParameterNode `json:"parameters"`
}

// Tree is one heading with its ordered subheadings
type Tree struct {
	AdvertisementID int64            `json:"advertisement_id"`
	Heading         MetadataNode     `json:"heading"`
	Subheadings     []SubheadingNode `json:"subheadings"`
	// parameters whose option list failed to load and were left empty
	UnavailableOptions []int64 `json:"unavailable_options,omitempty"`
}

// Subheading looks up a subheading by id
func (t *Tree) Subheading(id int64) (*SubheadingNode, bool) {
	for i := range t.Subheadings {
		if t.Subheadings[i].ID == id {
			return &t.Subheadings[i], true
		}
	}
	return nil, false
}

// Parameter looks up a parameter and its owning subheading by parameter id
func (t *Tree) Parameter(id int64) (*ParameterNode, *SubheadingNode, bool) {
	for i := range t.Subheadings {
		sub := &t.Subheadings[i]
		for j := range sub.Parameters {
			if sub.Parameters[j].ID == id {
				return &sub.Parameters[j], sub, true
			}
		}
	}
	return nil, nil, false
}
