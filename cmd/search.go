package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"SampleDeck/core/search"
	"SampleDeck/core/tabs"
	"SampleDeck/model"

	"github.com/spf13/cobra"
)

var (
	searchTags     []string
	searchPages    int
	searchCategory string
	searchBPM      string
	searchKey      string
	searchSort     string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the sample catalog",
	Long:  `Search the sample catalog and print the results as a table. Tags are given by label and matched against the genre catalog.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		if err := runSearch(ctx, a.store, query); err != nil {
			return err
		}

		tab, err := a.store.Tabs().Snapshot("")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, renderTable(
			[]string{"#", "Name", "Type", "BPM", "Key", "Length", "Pack", "UUID"},
			assetRows(tab.Data.SampleAssets),
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
		))
		fmt.Fprintf(out, "\n%d of %d results\n", len(tab.Data.SampleAssets), tab.Data.TotalRecords)
		return nil
	},
}

// runSearch applies the search flags to the active tab and fetches the
// requested number of pages.
func runSearch(ctx context.Context, store *search.Store, query string) error {
	store.UpdateQuery(func(q *tabs.QueryState) {
		q.Query = query
		if searchSort != "" {
			q.Sort = searchSort
		}
		q.AssetCategorySlug = optionalString(searchCategory)
		q.BPM = optionalString(searchBPM)
		q.Key = optionalString(searchKey)
	})

	if len(searchTags) > 0 {
		if _, err := store.FetchAllGenres(ctx); err != nil {
			return err
		}
		for _, label := range searchTags {
			if search.NormalizeLabel(label) == "" {
				continue
			}
			if store.IsTagSelected(label) {
				continue
			}
			if _, err := store.ToggleTag(ctx, label); err != nil {
				return err
			}
		}
	} else if _, err := store.Fetch(ctx); err != nil {
		return err
	}

	for page := 1; page < searchPages; page++ {
		if _, err := store.LoadMore(ctx); err != nil {
			return err
		}
	}
	return nil
}

func assetRows(assets []*model.SampleAsset) [][]string {
	rows := make([][]string, 0, len(assets))
	for i, asset := range assets {
		bpm, key, pack := "", "", ""
		if asset.BPM != nil {
			bpm = strconv.Itoa(*asset.BPM)
		}
		if asset.Key != nil {
			key = strings.ToUpper(*asset.Key)
			if asset.ChordType != nil {
				key += " " + *asset.ChordType
			}
		}
		if p := asset.PrimaryPack(); p != nil {
			pack = p.Name
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			asset.Name,
			asset.AssetCategorySlug,
			bpm,
			key,
			fmt.Sprintf("%.1fs", asset.DurationSeconds()),
			pack,
			asset.UUID,
		})
	}
	return rows
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func addSearchFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&searchTags, "tag", "t", nil, "filter by tag label (repeatable)")
	cmd.Flags().IntVarP(&searchPages, "pages", "p", 1, "number of result pages to load")
	cmd.Flags().StringVar(&searchCategory, "category", "", "asset category: loop or oneshot")
	cmd.Flags().StringVar(&searchBPM, "bpm", "", "exact bpm")
	cmd.Flags().StringVar(&searchKey, "key", "", "musical key, e.g. c#")
	cmd.Flags().StringVar(&searchSort, "sort", "", "sort order (default random)")
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}
