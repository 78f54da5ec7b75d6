package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listEntriesLimit int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the tool result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count, size, and expired records",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		stats, err := rt.Cache.Stats(rt.CacheTTL())
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cache entries, youngest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		entries, err := rt.Cache.ListEntries(listEntriesLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd, entries)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [pattern]",
	Short: "Remove cache entries matching a namespace/key glob (all when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		removed, err := rt.Cache.Clear(pattern)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove entries older than the configured TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadedConfig)
		if err != nil {
			return err
		}
		defer rt.Close()

		removed, err := rt.Cache.CleanupExpired(rt.CacheTTL())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", removed)
		return nil
	},
}

func init() {
	cacheListCmd.Flags().IntVar(&listEntriesLimit, "limit", 0, "maximum number of entries (0 = all)")

	cacheCmd.AddCommand(cacheStatsCmd, cacheListCmd, cacheClearCmd, cacheCleanupCmd)
	rootCmd.AddCommand(cacheCmd)
}
