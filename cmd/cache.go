package cmd

import (
	"fmt"
	"time"

	"example.com/convoy/pkg/cache"
	"github.com/spf13/cobra"
)

func NewCmdCache() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the artifact cache",
	}
	cmd.AddCommand(newCmdCacheStats())
	cmd.AddCommand(newCmdCacheClear())
	return cmd
}

func newCmdCacheStats() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached artifacts and total cache size",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cache.NewStore(cacheDir())
			if err != nil {
				return err
			}
			entries, err := store.Entries()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "cache is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %10s  %s  %s\n",
					e.SHA256[:12], formatBytes(e.SizeBytes),
					time.Unix(0, e.MTime).Format(time.DateTime), e.LocalPath)
			}
			total, err := store.TotalSize()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d artifact(s), %s total\n", len(entries), formatBytes(total))
			return nil
		},
	}
}

func newCmdCacheClear() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cache.NewStore(cacheDir())
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
}
