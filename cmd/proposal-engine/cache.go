// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proposal-engine/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the tool result cache",
	Long: `Cache inspects and maintains the SQLite store that holds search tool
results. Entries expire after the configured TTL (default 7 days) and are
evicted lazily on lookup; prune evicts every expired entry at once.`,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Prune(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d expired entries.\n", n)
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of cached entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Len(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("%d entries, TTL %s\n", n, store.TTL())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheStatsCmd)

	rootCmd.AddCommand(cacheCmd)
}

func openCache() (*cache.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.Open(cfg.Cache)
}
