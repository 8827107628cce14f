package model

// TagTaxonomy groups tags (genre, instrument, ...).
type TagTaxonomy struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// SummaryTag is a tag as it appears inside a tag summary facet.
type SummaryTag struct {
	UUID     string       `json:"uuid"`
	Label    string       `json:"label"`
	Taxonomy *TagTaxonomy `json:"taxonomy,omitempty"`
}

// TagSummaryEntry is one facet of a search: a tag and how many results carry it.
type TagSummaryEntry struct {
	Count int        `json:"count"`
	Tag   SummaryTag `json:"tag"`
}

// PaginationMetadata describes the page a search response covers.
type PaginationMetadata struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// ResponseMetadata carries the total number of matching records.
type ResponseMetadata struct {
	Records int `json:"records"`
}

// AssetPage is the assetsSearch payload of a SamplesSearch response.
type AssetPage struct {
	Items              []SampleAsset      `json:"items"`
	TagSummary         []TagSummaryEntry  `json:"tag_summary,omitempty"`
	PaginationMetadata PaginationMetadata `json:"pagination_metadata"`
	ResponseMetadata   ResponseMetadata   `json:"response_metadata"`
}

// SamplesSearchData is the data object of a SamplesSearch response.
type SamplesSearchData struct {
	AssetsSearch AssetPage `json:"assetsSearch"`
}

// TagCategory is one category of a tag category list, with optional subcategories.
type TagCategory struct {
	UUID          string        `json:"uuid"`
	Name          string        `json:"name"`
	Permalink     string        `json:"permalink,omitempty"`
	Tags          []Tag         `json:"tags,omitempty"`
	Subcategories []TagCategory `json:"subcategories,omitempty"`
}

// TagCategoryList is the root object returned by CategoryList.
type TagCategoryList struct {
	UUID          string        `json:"uuid"`
	PermalinkSlug string        `json:"permalink_slug"`
	Name          string        `json:"name"`
	Categories    []TagCategory `json:"categories"`
}

// CategoryListData is the data object of a CategoryList response.
type CategoryListData struct {
	Categories *TagCategoryList `json:"categories"`
}

// Genre is an entry of the process-wide genre catalog.
type Genre struct {
	UUID  string `json:"uuid"`
	Label string `json:"label"`
}
