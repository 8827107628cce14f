package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SampleDeck/core/audio"
	"SampleDeck/model"

	"github.com/spf13/cobra"
)

var (
	previewUUID     string
	previewIndex    int
	previewFrom     float64
	previewDuration time.Duration
	previewLoop     bool
)

var previewCmd = &cobra.Command{
	Use:   "preview [query]",
	Short: "Play a sample through the speaker",
	Long: `Play a sample through the default audio device. The sample is either
given by --uuid or picked by --index from the results of a search.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		asset, err := pickPreview(ctx, a, args)
		if err != nil {
			return err
		}

		a.engine.SetRepeat(previewLoop)
		go a.engine.Run(ctx)

		fmt.Fprintf(cmd.OutOrStdout(), "Playing %s (%s, %.1fs)\n", asset.Name, asset.UUID, asset.DurationSeconds())
		if err := a.engine.Play(ctx, asset, previewFrom); err != nil {
			return err
		}

		var deadline <-chan time.Time
		if previewDuration > 0 {
			timer := time.NewTimer(previewDuration)
			defer timer.Stop()
			deadline = timer.C
		}

		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				a.engine.Stop()
				return nil
			case <-deadline:
				a.engine.Stop()
				return nil
			case <-ticker.C:
				if a.engine.State().Status != audio.StatusPlaying {
					return nil
				}
			}
		}
	},
}

func pickPreview(ctx context.Context, a *app, args []string) (*model.SampleAsset, error) {
	if previewUUID != "" {
		return a.lookup(ctx, previewUUID)
	}

	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	if err := runSearch(ctx, a.store, query); err != nil {
		return nil, err
	}
	tab, err := a.store.Tabs().Snapshot("")
	if err != nil {
		return nil, err
	}
	n := len(tab.Data.SampleAssets)
	if n == 0 {
		return nil, fmt.Errorf("no samples match")
	}
	if previewIndex < 1 || previewIndex > n {
		return nil, fmt.Errorf("index %d out of range 1..%d", previewIndex, n)
	}
	return tab.Data.SampleAssets[previewIndex-1], nil
}

func init() {
	addSearchFlags(previewCmd)
	previewCmd.Flags().StringVar(&previewUUID, "uuid", "", "sample uuid to play")
	previewCmd.Flags().IntVarP(&previewIndex, "index", "i", 1, "1-based index into the search results")
	previewCmd.Flags().Float64Var(&previewFrom, "from", 0, "start offset in seconds")
	previewCmd.Flags().DurationVarP(&previewDuration, "duration", "d", 0, "stop after this long (0 plays to the end)")
	previewCmd.Flags().BoolVar(&previewLoop, "loop", false, "repeat loops until interrupted")
	rootCmd.AddCommand(previewCmd)
}
