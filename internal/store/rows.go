package store

import (
	"time"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// ScoreField is one heading, subheading or parameter definition
type ScoreField struct {
	ID              int64   `gorm:"primaryKey;autoIncrement:false" yaml:"id"`
	AdvertisementID int64   `gorm:"index:idx_score_field_parent" yaml:"-"`
	ParentID        int64   `gorm:"index:idx_score_field_parent" yaml:"parent_id"`
	Name            string  `gorm:"not null" yaml:"name"`
	DisplayOrder    int     `yaml:"display_order"`
	Marks           float64 `yaml:"marks"`
	Weightage       float64 `yaml:"weightage"`
	Mandatory       bool    `yaml:"mandatory"`
	CalcMethod      int     `yaml:"calc_method"`
	Control         string  `yaml:"control"`
	DataType        string  `yaml:"data_type"`
	SizeLimitKB     int     `yaml:"size_limit_kb"`
	OptionListID    int64   `yaml:"option_list_id"`
	Role            string  `yaml:"role"`
	ScreeningInput  bool    `yaml:"screening_input"`
}

func (f ScoreField) node() models.MetadataNode {
	return models.MetadataNode{
		ID:             f.ID,
		ParentID:       f.ParentID,
		Name:           f.Name,
		DisplayOrder:   f.DisplayOrder,
		Marks:          f.Marks,
		Weightage:      f.Weightage,
		Mandatory:      f.Mandatory,
		CalcMethod:     models.CalcMethod(f.CalcMethod),
		Control:        models.ControlKind(f.Control),
		DataType:       models.DataType(f.DataType),
		SizeLimitKB:    f.SizeLimitKB,
		OptionListID:   f.OptionListID,
		Role:           models.CalcRole(f.Role),
		ScreeningInput: f.ScreeningInput,
	}
}

// OptionItem is one dropdown entry. A non-empty FilterKey limits the entry to
// queries whose filters carry FilterKey=FilterValue.
type OptionItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false" yaml:"id"`
	QueryID     int64  `gorm:"index" yaml:"query_id"`
	Name        string `gorm:"not null" yaml:"name"`
	FilterKey   string `yaml:"filter_key"`
	FilterValue string `yaml:"filter_value"`
}

// CandidateDetail is one persisted record
type CandidateDetail struct {
	ID              int64  `gorm:"primaryKey"`
	RegistrationNo  string `gorm:"index:idx_detail_owner;not null"`
	ApplicationID   int64  `gorm:"index:idx_detail_owner"`
	HeadingID       int64  `gorm:"index:idx_detail_owner"`
	OwnerFlag       string `gorm:"index:idx_detail_owner;size:1"`
	SubheadingID    int64
	RowIndex        int
	StatusID        int
	RawValue        float64
	ActualValue     float64
	CalculatedValue float64
	DeleteFlag      bool `gorm:"default:false"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CandidateParameterValue is one persisted parameter value
type CandidateParameterValue struct {
	ID          int64 `gorm:"primaryKey"`
	DetailID    int64 `gorm:"index"`
	ParameterID int64
	RowIndex    int
	Value       string
	IsFile      bool
	DeleteFlag  bool `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HeadingScore is the heading-level score of one owner and track
type HeadingScore struct {
	ID              int64  `gorm:"primaryKey"`
	RegistrationNo  string `gorm:"uniqueIndex:idx_heading_score;not null"`
	ApplicationID   int64  `gorm:"uniqueIndex:idx_heading_score"`
	HeadingID       int64  `gorm:"uniqueIndex:idx_heading_score"`
	OwnerFlag       string `gorm:"uniqueIndex:idx_heading_score;size:1"`
	RawValue        float64
	ActualValue     float64
	CalculatedValue float64
	UpdatedAt       time.Time
}

func (d CandidateDetail) score() models.ScoreTriple {
	return models.ScoreTriple{Raw: d.RawValue, Actual: d.ActualValue, Calculated: d.CalculatedValue}
}
