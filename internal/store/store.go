package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fmuoria/recruitment-scoring/internal/attachment"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/reconcile"
)

// Store is the database-backed implementation of the metadata, option list,
// values and save collaborators.
type Store struct {
	db    *gorm.DB
	files *attachment.FileStore
	log   *logger.Logger
}

// New creates a store. files receives uploads carried by save requests.
func New(db *gorm.DB, files *attachment.FileStore, baseLog *logger.Logger) *Store {
	return &Store{db: db, files: files, log: baseLog.With("component", "Store")}
}

// DB returns the underlying handle
func (s *Store) DB() *gorm.DB { return s.db }

// FetchNodes returns the score fields of advertisementID under parentID
func (s *Store) FetchNodes(ctx context.Context, advertisementID, parentID int64) ([]models.MetadataNode, error) {
	var rows []ScoreField
	err := s.db.WithContext(ctx).
		Where("advertisement_id = ? AND parent_id = ?", advertisementID, parentID).
		Order("display_order ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch score fields: %w", err)
	}
	nodes := make([]models.MetadataNode, len(rows))
	for i, r := range rows {
		nodes[i] = r.node()
	}
	return nodes, nil
}

// FetchOptions returns the entries of option list queryID matching filters
func (s *Store) FetchOptions(ctx context.Context, queryID int64, filters map[string]string) ([]models.Option, error) {
	var rows []OptionItem
	if err := s.db.WithContext(ctx).Where("query_id = ?", queryID).Order("name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch option list %d: %w", queryID, err)
	}
	out := make([]models.Option, 0, len(rows))
	for _, r := range rows {
		if r.FilterKey != "" && filters[r.FilterKey] != r.FilterValue {
			continue
		}
		out = append(out, models.Option{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

type valueRow struct {
	DetailID         int64
	ParameterValueID int64
	SubheadingID     int64
	ParameterID      int64
	RowIndex         int
	Value            string
	OwnerFlag        string
	StatusID         int
	RawValue         float64
	ActualValue      float64
	CalculatedValue  float64
}

// FetchValues returns live value rows of one owner, heading and track
func (s *Store) FetchValues(ctx context.Context, q reconcile.OwnerQuery) ([]models.PersistedValue, error) {
	var rows []valueRow
	err := s.db.WithContext(ctx).
		Table("candidate_details AS d").
		Select(`d.id AS detail_id, v.id AS parameter_value_id, d.subheading_id, v.parameter_id,
			d.row_index, v.value, d.owner_flag, d.status_id,
			d.raw_value, d.actual_value, d.calculated_value`).
		Joins("JOIN candidate_parameter_values AS v ON v.detail_id = d.id AND v.delete_flag = ?", false).
		Where("d.registration_no = ? AND d.application_id = ? AND d.heading_id = ? AND d.owner_flag = ? AND d.delete_flag = ?",
			q.RegistrationNo, q.ApplicationID, q.HeadingID, string(q.Owner), false).
		Order("d.subheading_id ASC, d.row_index ASC, v.parameter_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch parameter values: %w", err)
	}

	out := make([]models.PersistedValue, len(rows))
	for i, r := range rows {
		out[i] = models.PersistedValue{
			DetailID:         r.DetailID,
			ParameterValueID: r.ParameterValueID,
			SubheadingID:     r.SubheadingID,
			ParameterID:      r.ParameterID,
			RowIndex:         r.RowIndex,
			Value:            r.Value,
			Owner:            models.OwnerFlag(r.OwnerFlag),
			StatusID:         r.StatusID,
			Score:            models.ScoreTriple{Raw: r.RawValue, Actual: r.ActualValue, Calculated: r.CalculatedValue},
		}
	}
	return out, nil
}

// HeadingScore returns the saved heading score of one owner and track
func (s *Store) HeadingScore(ctx context.Context, owner models.Owner, headingID int64, flag models.OwnerFlag) (*HeadingScore, error) {
	var row HeadingScore
	err := s.db.WithContext(ctx).
		Where("registration_no = ? AND application_id = ? AND heading_id = ? AND owner_flag = ?",
			owner.RegistrationNo, owner.ApplicationID, headingID, string(flag)).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch heading score: %w", err)
	}
	return &row, nil
}
