package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"SampleDeck/cache"

	"github.com/spf13/cobra"
)

var (
	redisInfo  bool
	redisPurge bool
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis sample tier",
	Long:  `Ping the Redis sample tier. With --info, list the cached samples and their remaining TTL; with --purge, drop them all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.RedisEnabled() {
			return errors.New("REDIS_HOST is not set")
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Redis: %s:%s, DB %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)
		if err := cache.ConnectRedis(cfg); err != nil {
			return err
		}
		defer cache.CloseRedis()

		if err := cache.TestRedis(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Connection OK")

		samples := cache.NewSampleCache(cache.RedisClient, cfg.RedisTTL)
		if redisInfo {
			info, err := samples.Info(ctx)
			if err != nil {
				return err
			}
			uuids := make([]string, 0, len(info))
			for id := range info {
				uuids = append(uuids, id)
			}
			sort.Strings(uuids)

			rows := make([][]string, 0, len(uuids))
			for _, id := range uuids {
				ttl := "none"
				if info[id] >= 0 {
					ttl = (time.Duration(info[id]) * time.Second).String()
				}
				rows = append(rows, []string{id, ttl})
			}
			fmt.Fprint(out, renderTable([]string{"UUID", "TTL"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(out, "\n%d cached samples\n", len(rows))
		}
		if redisPurge {
			n, err := samples.Purge(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Purged %d samples\n", n)
		}
		return nil
	},
}

func init() {
	redisCmd.Flags().BoolVar(&redisInfo, "info", false, "list cached samples")
	redisCmd.Flags().BoolVar(&redisPurge, "purge", false, "delete all cached samples")
	rootCmd.AddCommand(redisCmd)
}
