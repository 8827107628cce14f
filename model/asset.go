package model

// AssetCategoryLoop marks samples that are meant to repeat seamlessly.
const AssetCategoryLoop = "loop"

// SampleAsset is one catalog entry as returned by the SamplesSearch query.
// It is immutable once fetched.
type SampleAsset struct {
	UUID              string        `json:"uuid"`
	Name              string        `json:"name"`
	Duration          int64         `json:"duration"` // milliseconds
	AssetCategorySlug string        `json:"asset_category_slug"`
	AssetTypeSlug     string        `json:"asset_type_slug,omitempty"`
	BPM               *int          `json:"bpm,omitempty"`
	Key               *string       `json:"key,omitempty"`
	ChordType         *string       `json:"chord_type,omitempty"`
	Tags              []Tag         `json:"tags,omitempty"`
	Files             []AssetFile   `json:"files"`
	Parents           *AssetParents `json:"parents,omitempty"`
}

// AssetFile is a remote file descriptor. The first file of a sample is its audio.
type AssetFile struct {
	UUID              string `json:"uuid"`
	Name              string `json:"name,omitempty"`
	Hash              string `json:"hash,omitempty"`
	Path              string `json:"path,omitempty"`
	AssetFileTypeSlug string `json:"asset_file_type_slug,omitempty"`
	URL               string `json:"url"`
}

// PackAsset is the pack a sample belongs to.
type PackAsset struct {
	UUID             string      `json:"uuid"`
	Name             string      `json:"name"`
	PermalinkSlug    string      `json:"permalink_slug,omitempty"`
	PermalinkBaseURL string      `json:"permalink_base_url,omitempty"`
	Files            []AssetFile `json:"files,omitempty"`
}

// AssetParents wraps the owning packs; index 0 is the primary pack.
type AssetParents struct {
	Items []PackAsset `json:"items"`
}

// Tag is a catalog tag such as a genre or instrument.
type Tag struct {
	UUID  string `json:"uuid"`
	Label string `json:"label"`
}

// PrimaryFile returns the file holding the sample audio, or nil when the
// asset carries no files.
func (a *SampleAsset) PrimaryFile() *AssetFile {
	if len(a.Files) == 0 {
		return nil
	}
	return &a.Files[0]
}

// PrimaryPack returns the owning pack, or nil.
func (a *SampleAsset) PrimaryPack() *PackAsset {
	if a.Parents == nil || len(a.Parents.Items) == 0 {
		return nil
	}
	return &a.Parents.Items[0]
}

// IsLoop reports whether the asset belongs to the loop category.
func (a *SampleAsset) IsLoop() bool {
	return a.AssetCategorySlug == AssetCategoryLoop
}

// DurationSeconds is the metadata duration, used before the audio is decoded.
func (a *SampleAsset) DurationSeconds() float64 {
	return float64(a.Duration) / 1000
}
