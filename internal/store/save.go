package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

// errRejected marks request problems reported back as an error envelope
// rather than a transport failure.
type errRejected struct{ msg string }

func (e *errRejected) Error() string { return e.msg }

func reject(format string, args ...interface{}) error {
	return &errRejected{msg: fmt.Sprintf(format, args...)}
}

// Save applies a save request in one transaction. Rows are never removed:
// deletes set delete_flag. Files are written before commit, so a failed
// write rolls the rows back and removes the files already written.
func (s *Store) Save(ctx context.Context, req models.SaveRequest) (*models.SaveResponse, error) {
	var (
		result  models.SaveResult
		written []string
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		details := make(map[models.RecordKey]int64, len(req.DetailList))
		for _, d := range req.DetailList {
			id, err := s.saveDetail(tx, req.ParentScore, d)
			if err != nil {
				return err
			}
			key := models.RecordKey{SubheadingID: d.SubheadingID, RowIndex: d.RowIndex}
			details[key] = id
			if !d.DeleteFlag {
				result.Details = append(result.Details, models.AssignedDetail{Key: key, DetailID: id})
			}
		}

		for _, p := range req.ParameterList {
			key := models.ValueKey{RecordKey: models.RecordKey{SubheadingID: p.SubheadingID, RowIndex: p.RowIndex}, ParameterID: p.ParameterID}
			detailID := p.DetailID
			if detailID == 0 {
				detailID = details[key.RecordKey]
			}
			if detailID == 0 {
				return reject("parameter %d references unknown record %s", p.ParameterID, key.RecordKey)
			}
			id, err := s.saveValue(tx, detailID, p)
			if err != nil {
				return err
			}
			result.Parameters = append(result.Parameters, models.AssignedParameter{Key: key, ParameterValueID: id})
		}

		if err := s.saveHeadingScore(tx, req.ParentScore); err != nil {
			return err
		}

		for _, f := range req.Files {
			if s.files == nil {
				return reject("file uploads are not configured")
			}
			if _, err := s.files.SaveBytes(f.Path, f.File.Data); err != nil {
				return fmt.Errorf("failed to store %s: %w", f.Path, err)
			}
			written = append(written, f.Path)
		}
		return nil
	})
	if err != nil {
		for _, path := range written {
			if rmErr := s.files.Remove(path); rmErr != nil {
				s.log.Warn("Failed to remove file of rolled back save", "path", path, "error", rmErr)
			}
		}
	}

	var rej *errRejected
	if errors.As(err, &rej) {
		s.log.Warn("Save rejected", "registration_no", req.ParentScore.RegistrationNo, "reason", rej.msg)
		return &models.SaveResponse{Error: &models.ErrorEnvelope{Message: rej.msg}}, nil
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Saved records",
		"registration_no", req.ParentScore.RegistrationNo,
		"heading_id", req.ParentScore.HeadingID,
		"owner_flag", req.ParentScore.Owner,
		"details", len(req.DetailList),
		"parameters", len(req.ParameterList),
		"files", len(req.Files),
	)
	return &models.SaveResponse{Result: result}, nil
}

func (s *Store) saveDetail(tx *gorm.DB, parent models.ParentScore, d models.DetailPayload) (int64, error) {
	if d.RegistrationNo != parent.RegistrationNo || d.ApplicationID != parent.ApplicationID ||
		d.HeadingID != parent.HeadingID || d.Owner != parent.Owner {
		return 0, reject("record %d#%d does not belong to the submitted heading", d.SubheadingID, d.RowIndex)
	}

	if d.DetailID == 0 {
		if d.DeleteFlag {
			return 0, reject("cannot delete unsaved record %d#%d", d.SubheadingID, d.RowIndex)
		}
		row := CandidateDetail{
			RegistrationNo:  d.RegistrationNo,
			ApplicationID:   d.ApplicationID,
			HeadingID:       d.HeadingID,
			OwnerFlag:       string(d.Owner),
			SubheadingID:    d.SubheadingID,
			RowIndex:        d.RowIndex,
			StatusID:        d.StatusID,
			RawValue:        d.Score.Raw,
			ActualValue:     d.Score.Actual,
			CalculatedValue: d.Score.Calculated,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, fmt.Errorf("failed to create record: %w", err)
		}
		return row.ID, nil
	}

	var existing CandidateDetail
	if err := tx.First(&existing, d.DetailID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, reject("record %d not found", d.DetailID)
		}
		return 0, fmt.Errorf("failed to load record %d: %w", d.DetailID, err)
	}
	if existing.RegistrationNo != d.RegistrationNo || existing.ApplicationID != d.ApplicationID ||
		existing.HeadingID != d.HeadingID || existing.OwnerFlag != string(d.Owner) {
		return 0, reject("record %d belongs to a different owner or track", d.DetailID)
	}

	updates := map[string]interface{}{"delete_flag": d.DeleteFlag}
	if !d.DeleteFlag {
		updates["subheading_id"] = d.SubheadingID
		updates["row_index"] = d.RowIndex
		updates["status_id"] = d.StatusID
		updates["raw_value"] = d.Score.Raw
		updates["actual_value"] = d.Score.Actual
		updates["calculated_value"] = d.Score.Calculated
	}
	if err := tx.Model(&existing).Updates(updates).Error; err != nil {
		return 0, fmt.Errorf("failed to update record %d: %w", d.DetailID, err)
	}
	if d.DeleteFlag {
		if err := tx.Model(&CandidateParameterValue{}).Where("detail_id = ?", d.DetailID).
			Update("delete_flag", true).Error; err != nil {
			return 0, fmt.Errorf("failed to flag values of record %d: %w", d.DetailID, err)
		}
	}
	return existing.ID, nil
}

func (s *Store) saveValue(tx *gorm.DB, detailID int64, p models.ParameterPayload) (int64, error) {
	if p.ParameterValueID == 0 {
		row := CandidateParameterValue{
			DetailID:    detailID,
			ParameterID: p.ParameterID,
			RowIndex:    p.RowIndex,
			Value:       p.Value,
			IsFile:      p.IsFile,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, fmt.Errorf("failed to create parameter value: %w", err)
		}
		return row.ID, nil
	}

	res := tx.Model(&CandidateParameterValue{}).
		Where("id = ? AND detail_id = ?", p.ParameterValueID, detailID).
		Updates(map[string]interface{}{"value": p.Value, "is_file": p.IsFile, "delete_flag": false})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to update parameter value %d: %w", p.ParameterValueID, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, reject("parameter value %d not found on record %d", p.ParameterValueID, detailID)
	}
	return p.ParameterValueID, nil
}

func (s *Store) saveHeadingScore(tx *gorm.DB, parent models.ParentScore) error {
	row := HeadingScore{
		RegistrationNo:  parent.RegistrationNo,
		ApplicationID:   parent.ApplicationID,
		HeadingID:       parent.HeadingID,
		OwnerFlag:       string(parent.Owner),
		RawValue:        parent.Score.Raw,
		ActualValue:     parent.Score.Actual,
		CalculatedValue: parent.Score.Calculated,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "registration_no"}, {Name: "application_id"}, {Name: "heading_id"}, {Name: "owner_flag"}},
		DoUpdates: clause.AssignmentColumns([]string{"raw_value", "actual_value", "calculated_value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save heading score: %w", err)
	}
	return nil
}
