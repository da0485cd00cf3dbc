package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fabricpulse/dashboard/internal/alerts"
	"github.com/fabricpulse/dashboard/internal/insights"
)

type StatusCmd struct{}

func NewStatusCmd() *StatusCmd {
	return &StatusCmd{}
}

func (c *StatusCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show service status",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := cmd.Root().PersistentFlags().GetString("server")
			if err != nil {
				return fmt.Errorf("failed to get server flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var status struct {
				Service          string            `json:"service"`
				AIEnabled        bool              `json:"ai_enabled"`
				BackendReachable bool              `json:"backend_reachable"`
				MonitorInterval  string            `json:"monitor_interval"`
				RunState         insights.RunState `json:"run_state"`
				AlertCounts      alerts.Counts     `json:"alert_counts"`
			}
			if err := newAPIClient(server).get(ctx, "/api/status", &status); err != nil {
				return err
			}

			fmt.Println("Service:", status.Service)
			fmt.Println("AI enabled:", status.AIEnabled)
			fmt.Println("Backend reachable:", status.BackendReachable)
			fmt.Println("Monitor interval:", status.MonitorInterval)
			fmt.Println("Run status:", status.RunState.Status)
			if status.RunState.LastAnalysisTimestamp != "" {
				fmt.Println("Last analysis:", status.RunState.LastAnalysisTimestamp)
			}
			fmt.Printf("Alerts: %d total, %d unread, %d high priority, %d resolved\n",
				status.AlertCounts.Total, status.AlertCounts.Unread,
				status.AlertCounts.HighPriority, status.AlertCounts.Resolved)

			if !status.BackendReachable {
				os.Exit(1)
			}
			return nil
		},
	}
}
