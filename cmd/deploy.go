package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"example.com/convoy/global"
	"example.com/convoy/pkg/cache"
	"example.com/convoy/pkg/config"
	"example.com/convoy/pkg/credential"
	"example.com/convoy/pkg/logger"
	"example.com/convoy/pkg/resume"
	"example.com/convoy/pkg/runner"
	"example.com/convoy/pkg/sshconf"
	"example.com/convoy/pkg/transport"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type DeployOptions struct {
	ConfigPath    string
	MaxConcurrent int
	NoCache       bool
	AskPass       bool
	NoProgress    bool
}

func NewDeployOptions() *DeployOptions {
	return &DeployOptions{
		MaxConcurrent: runner.DefaultConcurrency,
	}
}

func NewCmdDeploy() *cobra.Command {
	o := NewDeployOptions()
	cmd := &cobra.Command{
		Use:   "deploy -c config.yaml",
		Short: "Build (if needed) and ship the artifact to all configured targets",
		Long: `Build the artifact when its cache entry is stale, then upload it to every
target in the configuration concurrently and run the configured post-transfer
action on each host. Interrupted uploads resume from the persisted offset on
the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd)
		},
	}
	cmd.Flags().StringVarP(&o.ConfigPath, "config", "c", "", "deploy configuration file (YAML)")
	cmd.Flags().IntVar(&o.MaxConcurrent, "max-concurrent-uploads", runner.DefaultConcurrency, "maximum simultaneous uploads (1-10)")
	cmd.Flags().BoolVar(&o.NoCache, "no-cache", false, "ignore the artifact cache and rebuild")
	cmd.Flags().BoolVar(&o.AskPass, "ask-pass", false, "prompt for an SSH password on the terminal")
	cmd.Flags().BoolVar(&o.NoProgress, "no-progress", false, "disable the transfer progress bar")
	cmd.MarkFlagRequired("config")
	return cmd
}

func (o *DeployOptions) Run(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	if o.AskPass {
		pass, err := promptPassword()
		if err != nil {
			return err
		}
		cfg.Transport.Password = pass
	}

	cacheStore, err := cache.NewStore(cacheDir())
	if err != nil {
		return err
	}
	resumeStore, err := resume.NewStore(resumeDir())
	if err != nil {
		return err
	}
	if n, err := resumeStore.PurgeOlderThan(resume.DefaultRetention); err != nil {
		logger.Logger.Warn("resume purge failed", "error", err)
	} else if n > 0 {
		logger.Logger.Info("purged stale resume records", "count", n)
	}

	if err := o.ensureArtifact(cmd, cfg, cacheStore); err != nil {
		return err
	}

	pipeline := &runner.Pipeline{
		Resolver:     newResolver(cfg),
		Resume:       resumeStore,
		Timeout:      cfg.Transport.Timeout.Std(),
		ShowProgress: !o.NoProgress && global.IsTerminal,
		GlobalPost:   cfg.Post,
	}
	if pipeline.Timeout <= 0 {
		pipeline.Timeout = transport.DefaultTimeout
	}

	tasks := make([]runner.Task, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		tasks = append(tasks, runner.Task{
			Target:     target,
			LocalPath:  cfg.Artifact.Path,
			RemotePath: cfg.RemotePath,
		})
	}

	concurrency := runner.ClampConcurrency(o.MaxConcurrent)
	logger.Logger.Info("starting deploy",
		"targets", len(tasks), "max_concurrent", concurrency)

	outcomes := runner.Run(cmd.Context(), tasks, concurrency, pipeline.Deploy)

	failed := 0
	for _, out := range outcomes {
		if out.Success {
			fmt.Fprintf(cmd.OutOrStdout(), "ok   %-24s %s sent in %s\n",
				out.Target.Host, formatBytes(out.BytesSent), out.Duration.Round(time.Millisecond))
		} else {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %-24s %v\n", out.Target.Host, out.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(outcomes))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "all %d targets deployed\n", len(outcomes))
	return nil
}

// ensureArtifact makes sure a current artifact exists at cfg.Artifact.Path,
// running the configured build command when the cache entry is stale.
func (o *DeployOptions) ensureArtifact(cmd *cobra.Command, cfg *config.Config, store *cache.Store) error {
	path := cfg.Artifact.Path
	if !o.NoCache && !store.ShouldRebuild(path) {
		logger.Logger.Info("artifact unchanged, skipping rebuild", "path", path)
		return nil
	}

	if cfg.Artifact.BuildCommand != "" {
		logger.Logger.Info("building artifact", "command", cfg.Artifact.BuildCommand)
		build := exec.CommandContext(cmd.Context(), "sh", "-c", cfg.Artifact.BuildCommand)
		build.Stdout = cmd.OutOrStdout()
		build.Stderr = cmd.ErrOrStderr()
		if err := build.Run(); err != nil {
			return fmt.Errorf("build command failed: %w", err)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no artifact at %s (configure build_command or build it externally)", path)
	}
	entry, err := store.Record(path)
	if err != nil {
		return fmt.Errorf("record artifact in cache: %w", err)
	}
	logger.Logger.Info("artifact cached",
		"path", path, "sha256", entry.SHA256[:12], "size", formatBytes(entry.SizeBytes))
	return nil
}

func newResolver(cfg *config.Config) *credential.Resolver {
	r := &credential.Resolver{Global: cfg.Transport}
	path := cfg.Transport.SSHConfig
	if path == "" {
		path = sshconf.DefaultPath()
	} else {
		path = credential.ExpandHome(path)
	}
	if _, err := os.Stat(path); err == nil {
		sc, err := sshconf.Load(path)
		if err != nil {
			logger.Logger.Warn("ssh config unusable, skipping", "path", path, "error", err)
		} else {
			r.SSHConfig = sc
		}
	}
	return r
}

func promptPassword() (string, error) {
	if !global.IsTerminal {
		return "", fmt.Errorf("--ask-pass requires a terminal")
	}
	fmt.Fprint(os.Stderr, "SSH password: ")
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
