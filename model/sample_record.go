package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SampleRecord is the catalog row kept for every sample a search has shown,
// so that a sample can be looked up again by uuid alone.
type SampleRecord struct {
	UUID              string    `gorm:"primaryKey;size:64" json:"uuid"`
	Name              string    `gorm:"size:512;index" json:"name"`
	AssetCategorySlug string    `gorm:"size:64" json:"assetCategorySlug"`
	DurationMs        int64     `json:"durationMs"`
	PackName          string    `gorm:"size:512" json:"packName"`
	Payload           []byte    `gorm:"type:json" json:"-"` // full SampleAsset as JSON
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// TableName overrides the gorm default.
func (SampleRecord) TableName() string {
	return "sample_records"
}

// NewSampleRecord converts an asset into its catalog row.
func NewSampleRecord(asset *SampleAsset) (*SampleRecord, error) {
	payload, err := json.Marshal(asset)
	if err != nil {
		return nil, fmt.Errorf("marshal sample %s: %w", asset.UUID, err)
	}
	rec := &SampleRecord{
		UUID:              asset.UUID,
		Name:              asset.Name,
		AssetCategorySlug: asset.AssetCategorySlug,
		DurationMs:        asset.Duration,
		Payload:           payload,
	}
	if pack := asset.PrimaryPack(); pack != nil {
		rec.PackName = pack.Name
	}
	return rec, nil
}

// Asset decodes the stored payload back into a SampleAsset.
func (r *SampleRecord) Asset() (*SampleAsset, error) {
	var asset SampleAsset
	if err := json.Unmarshal(r.Payload, &asset); err != nil {
		return nil, fmt.Errorf("unmarshal sample %s: %w", r.UUID, err)
	}
	return &asset, nil
}
