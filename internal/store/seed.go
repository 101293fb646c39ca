package store

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedAdvertisement is the score field tree of one advertisement
type SeedAdvertisement struct {
	ID     int64        `yaml:"id"`
	Fields []ScoreField `yaml:"fields"`
}

// SeedData is the metadata loaded from a seed file
type SeedData struct {
	Advertisements []SeedAdvertisement `yaml:"advertisements"`
	Options        []OptionItem        `yaml:"options"`
}

// LoadSeedFile parses a YAML seed file
func LoadSeedFile(path string) (*SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

// Seed upserts score fields and option items
func (s *Store) Seed(ctx context.Context, seed *SeedData) error {
	if seed == nil {
		return nil
	}
	var fields int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		upsert := func(v interface{}) error {
			return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(v).Error
		}
		for _, adv := range seed.Advertisements {
			for _, f := range adv.Fields {
				f.AdvertisementID = adv.ID
				if err := upsert(&f); err != nil {
					return fmt.Errorf("failed to seed score field %d: %w", f.ID, err)
				}
				fields++
			}
		}
		for _, o := range seed.Options {
			if err := upsert(&o); err != nil {
				return fmt.Errorf("failed to seed option %d: %w", o.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("Seeded metadata", "score_fields", fields, "options", len(seed.Options))
	return nil
}
