package cmd

import (
	"fmt"
	"net"
	"time"

	"example.com/convoy/pkg/config"
	ping "github.com/prometheus-community/pro-bing"
	"github.com/spf13/cobra"
)

type CheckOptions struct {
	ConfigPath string
	IcmpCount  int
	Privileged bool
}

// NewCmdCheck builds the preflight command: for every configured target it
// pings the host over ICMP and probes the SSH port over TCP, without touching
// credentials or transferring anything.
func NewCmdCheck() *cobra.Command {
	o := &CheckOptions{}
	cmd := &cobra.Command{
		Use:   "check -c config.yaml",
		Short: "Check network reachability of all configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd)
		},
	}
	cmd.Flags().StringVarP(&o.ConfigPath, "config", "c", "", "deploy configuration file (YAML)")
	cmd.Flags().IntVar(&o.IcmpCount, "count", 3, "ICMP packets per target")
	cmd.Flags().BoolVar(&o.Privileged, "privileged", false, "use raw ICMP sockets (needs root)")
	cmd.MarkFlagRequired("config")
	return cmd
}

func (o *CheckOptions) Run(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	unreachable := 0
	for _, target := range cfg.Targets {
		host, port := target.Addr()

		icmp := o.pingHost(host)
		tcp := probeTCP(host, port)

		status := "ok"
		if tcp != nil {
			status = "UNREACHABLE"
			unreachable++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-24s icmp=%s tcp=%s\n",
			status, host, icmp, tcpResult(port, tcp))
	}
	if unreachable > 0 {
		return fmt.Errorf("%d of %d targets unreachable", unreachable, len(cfg.Targets))
	}
	return nil
}

// pingHost returns a short human summary of an ICMP probe. ICMP failures are
// informational only; plenty of hosts drop echo requests but accept SSH.
func (o *CheckOptions) pingHost(host string) string {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return fmt.Sprintf("error(%v)", err)
	}
	// Raw sockets need root on Linux; default to unprivileged UDP ping.
	pinger.SetPrivileged(o.Privileged)
	pinger.Count = o.IcmpCount
	pinger.Interval = 200 * time.Millisecond
	pinger.Timeout = 3 * time.Second

	if err := pinger.Run(); err != nil {
		return fmt.Sprintf("error(%v)", err)
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return "no-reply"
	}
	return fmt.Sprintf("%d/%d avg=%s", stats.PacketsRecv, stats.PacketsSent, stats.AvgRtt.Round(time.Millisecond))
}

func probeTCP(host string, port uint16) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

func tcpResult(port uint16, err error) string {
	if err != nil {
		return fmt.Sprintf("closed(%d)", port)
	}
	return fmt.Sprintf("open(%d)", port)
}
