package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SampleDeck/logger"
	"SampleDeck/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the SampleDeck HTTP API",
	Long:  `Start the HTTP API that drives search tabs, the sample player and prefetching, with a websocket feed of the player state on /ws/player.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		go a.engine.Run(ctx)
		a.watchSettings(ctx)

		go func() {
			if _, err := a.store.FetchAllGenres(ctx); err != nil {
				logger.Warn("Failed to load genres", logger.ErrorField(err))
			}
		}()

		srv := server.NewServer(cfg.HTTPAddr, server.Deps{
			Store:      a.store,
			Engine:     a.engine,
			Pipeline:   a.pipeline,
			Prefetcher: a.prefetcher,
			Samples:    a.samples,
			JWTSecret:  cfg.JWTSecret,
		})
		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
