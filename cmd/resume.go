package cmd

import (
	"fmt"
	"time"

	"example.com/convoy/pkg/resume"
	"github.com/spf13/cobra"
)

func NewCmdResume() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Inspect or prune persisted transfer progress",
	}
	cmd.AddCommand(newCmdResumeList())
	cmd.AddCommand(newCmdResumePurge())
	return cmd
}

func newCmdResumeList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transfers that can be resumed",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := resume.NewStore(resumeDir())
			if err != nil {
				return err
			}
			records, err := store.Pending()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending transfers")
				return nil
			}
			for _, rec := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-32s %6.2f%%  %s of %s\n",
					rec.RemoteHost, rec.RemotePath, rec.Percentage,
					formatBytes(rec.TransferredBytes), formatBytes(rec.TotalBytes))
			}
			return nil
		},
	}
}

func newCmdResumePurge() *cobra.Command {
	var olderThan int
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete resume records older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := resume.NewStore(resumeDir())
			if err != nil {
				return err
			}
			n, err := store.PurgeOlderThan(time.Duration(olderThan) * 24 * time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d record(s)\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThan, "older-than", 7, "age threshold in days")
	return cmd
}
