package splice

import "maps"

// Template is a GraphQL request with default variables. Templates are shared
// values; Query merges variables into a deep copy.
type Template struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

func (t Template) withVariables(vars map[string]any) Template {
	merged := make(map[string]any, len(t.Variables)+len(vars))
	for k, v := range t.Variables {
		merged[k] = copyValue(v)
	}
	for k, v := range vars {
		merged[k] = copyValue(v)
	}
	t.Variables = merged
	return t
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := maps.Clone(val)
		for k, inner := range m {
			m[k] = copyValue(inner)
		}
		return m
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = copyValue(inner)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// SamplesSearch searches sample assets. Variables not given by the caller
// fall back to the defaults below.
var SamplesSearch = Template{
	OperationName: "SamplesSearch",
	Variables: map[string]any{
		"order":               "DESC",
		"sort":                "random",
		"limit":               50,
		"page":                1,
		"tags":                []string{},
		"key":                 nil,
		"chord_type":          nil,
		"bpm":                 nil,
		"min_bpm":             nil,
		"max_bpm":             nil,
		"asset_category_slug": nil,
		"random_seed":         nil,
		"query":               nil,
		"ac_uuid":             nil,
		"include_tag_summary": true,
	},
	Query: `query SamplesSearch($parent_asset_uuid: GUID, $query: String, $order: SortOrder = DESC, $sort: AssetSortType = popularity, $random_seed: String, $tags: [ID], $key: String, $chord_type: String, $bpm: String, $min_bpm: Int, $max_bpm: Int, $limit: Int = 50, $asset_category_slug: AssetCategorySlug, $page: Int = 1, $ac_uuid: String, $parent_asset_type: AssetTypeSlug, $include_tag_summary: Boolean = true) {
  assetsSearch(
    filter: {legacy: true, published: true, asset_type_slug: sample, query: $query, tag_ids: $tags, key: $key, chord_type: $chord_type, bpm: $bpm, min_bpm: $min_bpm, max_bpm: $max_bpm, asset_category_slug: $asset_category_slug, ac_uuid: $ac_uuid}
    children: {parent_asset_uuid: $parent_asset_uuid}
    pagination: {page: $page, limit: $limit}
    sort: {sort: $sort, order: $order, random_seed: $random_seed}
    legacy: {parent_asset_type: $parent_asset_type}
  ) {
    ...assetDetails
  }
}

fragment assetDetails on AssetPage {
  ...assetPageItems
  ...assetTagSummaries @include(if: $include_tag_summary)
  pagination_metadata {
    currentPage
    totalPages
  }
  response_metadata {
    records
  }
}

fragment assetPageItems on AssetPage {
  items {
    ... on IAsset {
      asset_type_slug
      uuid
      name
      tags {
        uuid
        label
      }
      files {
        uuid
        name
        hash
        path
        asset_file_type_slug
        url
      }
    }
    ... on IAssetChild {
      parents(filter: {asset_type_slug: pack}) {
        items {
          ... on PackAsset {
            permalink_slug
            permalink_base_url
            uuid
            name
            files {
              uuid
              path
              asset_file_type_slug
              url
            }
          }
        }
      }
    }
    ... on SampleAsset {
      bpm
      chord_type
      key
      duration
      uuid
      name
      asset_category_slug
    }
  }
}

fragment assetTagSummaries on AssetPage {
  tag_summary {
    count
    tag {
      uuid
      label
      taxonomy {
        uuid
        name
      }
    }
  }
}`,
}

// CategoryList fetches a tag category tree ("genres", "styles", ...).
var CategoryList = Template{
	OperationName: "CategoryList",
	Variables:     map[string]any{"tagCategory": "genres"},
	Query: `query CategoryList($tagCategory: String!) {
  categories: tagCategoryList(permalink_slug: $tagCategory, v2Enabled: true) {
    uuid
    permalink_slug
    name
    categories {
      uuid
      name
      permalink
      tags {
        uuid
        label
      }
      subcategories {
        uuid
        name
        permalink
        tags {
          uuid
          label
        }
      }
    }
  }
}`,
}
