package cmd

import (
	"errors"
	"fmt"
	"time"

	"SampleDeck/storage"

	"github.com/spf13/cobra"
)

var archivePruneOlderThan time.Duration

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect the MinIO sample archive",
	Long:  `List the raw samples kept in the MinIO archive. With --prune-older-than, delete samples not written within that window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.MinioEnabled() {
			return errors.New("MINIO_ENDPOINT is not set")
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if err := storage.InitMinio(cfg); err != nil {
			return err
		}
		archive := storage.NewArchive(storage.GetMinioClient(), cfg.MinioBucket)

		if archivePruneOlderThan > 0 {
			n, err := archive.Prune(ctx, time.Now().Add(-archivePruneOlderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Pruned %d samples older than %s\n", n, archivePruneOlderThan)
		}

		objects, stats, err := archive.List(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(objects))
		for _, obj := range objects {
			rows = append(rows, []string{
				obj.UUID,
				storage.FormatSize(obj.Size),
				obj.LastModified.Local().Format("2006-01-02 15:04:05"),
			})
		}
		fmt.Fprint(out, renderTable(
			[]string{"UUID", "Size", "Modified"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft},
		))
		fmt.Fprintf(out, "\n%d samples, %s in bucket %s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize), cfg.MinioBucket)
		return nil
	},
}

func init() {
	archiveCmd.Flags().DurationVar(&archivePruneOlderThan, "prune-older-than", 0, "delete samples older than this (e.g. 720h)")
	rootCmd.AddCommand(archiveCmd)
}
