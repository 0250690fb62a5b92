package cmd

import (
	"context"
	"fmt"

	"example.com/convoy/cmd/version"
	"example.com/convoy/pkg/cache"
	"example.com/convoy/pkg/config"
	"example.com/convoy/pkg/logger"
	"example.com/convoy/pkg/resume"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

// NewCmdMCP exposes read-only deployment state over the Model Context
// Protocol on stdio, so assistants can answer "what is cached" and "what is
// still in flight" without shelling out.
func NewCmdMCP() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve cache and transfer state over MCP (stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServer(cmd.Context())
		},
	}
}

type cacheStatsArgs struct{}

type cacheStatsResult struct {
	Artifacts      []cacheArtifact `json:"artifacts"`
	TotalSizeBytes int64           `json:"total_size_bytes"`
}

type cacheArtifact struct {
	LocalPath string `json:"local_path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

type pendingArgs struct{}

type pendingResult struct {
	Transfers []pendingTransfer `json:"transfers"`
}

type pendingTransfer struct {
	RemoteHost       string  `json:"remote_host"`
	RemotePath       string  `json:"remote_path"`
	TransferredBytes int64   `json:"transferred_bytes"`
	TotalBytes       int64   `json:"total_bytes"`
	Percentage       float64 `json:"percentage"`
}

type listTargetsArgs struct {
	ConfigPath string `json:"config_path" jsonschema:"path to the deploy configuration YAML"`
}

type listTargetsResult struct {
	RemotePath string       `json:"remote_path"`
	Targets    []targetInfo `json:"targets"`
}

type targetInfo struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
	User string `json:"user,omitempty"`
}

func runMCPServer(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "convoy",
		Version: version.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "cache_stats",
		Description: "List cached artifacts with their digests and sizes",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cacheStatsArgs) (*mcp.CallToolResult, cacheStatsResult, error) {
		store, err := cache.NewStore(cacheDir())
		if err != nil {
			return nil, cacheStatsResult{}, err
		}
		entries, err := store.Entries()
		if err != nil {
			return nil, cacheStatsResult{}, err
		}
		total, err := store.TotalSize()
		if err != nil {
			return nil, cacheStatsResult{}, err
		}
		out := cacheStatsResult{
			Artifacts:      make([]cacheArtifact, 0, len(entries)),
			TotalSizeBytes: total,
		}
		for _, e := range entries {
			out.Artifacts = append(out.Artifacts, cacheArtifact{
				LocalPath: e.LocalPath,
				SHA256:    e.SHA256,
				SizeBytes: e.SizeBytes,
			})
		}
		return nil, out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "pending_transfers",
		Description: "List interrupted transfers that will resume on the next deploy",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args pendingArgs) (*mcp.CallToolResult, pendingResult, error) {
		store, err := resume.NewStore(resumeDir())
		if err != nil {
			return nil, pendingResult{}, err
		}
		records, err := store.Pending()
		if err != nil {
			return nil, pendingResult{}, err
		}
		out := pendingResult{Transfers: make([]pendingTransfer, 0, len(records))}
		for _, rec := range records {
			out.Transfers = append(out.Transfers, pendingTransfer{
				RemoteHost:       rec.RemoteHost,
				RemotePath:       rec.RemotePath,
				TransferredBytes: rec.TransferredBytes,
				TotalBytes:       rec.TotalBytes,
				Percentage:       rec.Percentage,
			})
		}
		return nil, out, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_targets",
		Description: "List deploy targets from a configuration file",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listTargetsArgs) (*mcp.CallToolResult, listTargetsResult, error) {
		if args.ConfigPath == "" {
			return nil, listTargetsResult{}, fmt.Errorf("config_path is required")
		}
		cfg, err := config.Load(args.ConfigPath)
		if err != nil {
			return nil, listTargetsResult{}, err
		}
		out := listTargetsResult{
			RemotePath: cfg.RemotePath,
			Targets:    make([]targetInfo, 0, len(cfg.Targets)),
		}
		for _, t := range cfg.Targets {
			host, port := t.Addr()
			out.Targets = append(out.Targets, targetInfo{Host: host, Port: port, User: t.User})
		}
		return nil, out, nil
	})

	logger.Logger.Info("mcp server listening on stdio")
	return server.Run(ctx, &mcp.StdioTransport{})
}
