package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the detection result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache hit/miss/expiration counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheFromConfig()
		if err != nil {
			return err
		}
		defer store.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(store.Stats())
	},
}

var cacheSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove all expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheFromConfig()
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("Removed %d expired entries\n", store.SweepExpired())
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <component>",
	Short: "Remove one component's cached detection result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheFromConfig()
		if err != nil {
			return err
		}
		defer store.Close()

		if !store.Invalidate(args[0]) {
			return fmt.Errorf("no cache entry for %q", args[0])
		}
		fmt.Printf("Invalidated %s\n", args[0])
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached detection result",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCacheFromConfig()
		if err != nil {
			return err
		}
		defer store.Close()

		fmt.Printf("Cleared %d entries\n", store.Clear())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheSweepCmd, cacheInvalidateCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
