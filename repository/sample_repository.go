package repository

import (
	"context"
	"errors"
	"fmt"

	"SampleDeck/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SampleRepository is the catalog of samples that searches have shown.
type SampleRepository interface {
	SaveAssets(ctx context.Context, assets []*model.SampleAsset) error
	FindByUUID(ctx context.Context, uuid string) (*model.SampleAsset, error)
	SearchByName(ctx context.Context, name string, limit int) ([]*model.SampleRecord, error)
	Count(ctx context.Context) (int64, error)
}

type gormSampleRepository struct {
	db *gorm.DB
}

// NewGormSampleRepository creates a gorm-backed sample catalog.
func NewGormSampleRepository(db *gorm.DB) SampleRepository {
	return &gormSampleRepository{db: db}
}

// SaveAssets upserts one row per asset. Existing rows get the latest payload.
func (r *gormSampleRepository) SaveAssets(ctx context.Context, assets []*model.SampleAsset) error {
	if len(assets) == 0 {
		return nil
	}
	records := make([]*model.SampleRecord, 0, len(assets))
	for _, asset := range assets {
		rec, err := model.NewSampleRecord(asset)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "asset_category_slug", "duration_ms", "pack_name", "payload", "updated_at"}),
		}).
		CreateInBatches(records, 100).Error
	if err != nil {
		return fmt.Errorf("save %d samples: %w", len(records), err)
	}
	return nil
}

// FindByUUID returns the stored asset, or nil when it was never recorded.
func (r *gormSampleRepository) FindByUUID(ctx context.Context, uuid string) (*model.SampleAsset, error) {
	var rec model.SampleRecord
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return rec.Asset()
}

// SearchByName returns recorded samples whose name contains name, newest first.
func (r *gormSampleRepository) SearchByName(ctx context.Context, name string, limit int) ([]*model.SampleRecord, error) {
	var records []*model.SampleRecord
	err := r.db.WithContext(ctx).
		Where("name LIKE ?", "%"+name+"%").
		Order("updated_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *gormSampleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SampleRecord{}).Count(&count).Error
	return count, err
}
