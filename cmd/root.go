package cmd

import (
	"os"

	"example.com/convoy/cmd/version"
	"example.com/convoy/pkg/logger"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "convoy [command] [flags]",
	Short: "convoy ships container-image artifacts to remote hosts over SSH",
	Long: `convoy moves a compressed container-image artifact from a build host to a
set of remote hosts over SSH, reliably and repeatedly, without re-doing
expensive work. Artifacts are cached by content, interrupted transfers resume
where they stopped, and uploads run concurrently with a bounded limit.`,
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			version.PrintFullVersion()
			os.Exit(0)
		}
		cmd.Help()
		os.Exit(0)
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if debugFlag {
			logger.SetLogLevel("debug")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "print version information")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(NewCmdDeploy())
	rootCmd.AddCommand(NewCmdCache())
	rootCmd.AddCommand(NewCmdResume())
	rootCmd.AddCommand(NewCmdCheck())
	rootCmd.AddCommand(NewCmdMCP())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			version.PrintFullVersion()
		},
	})
}
