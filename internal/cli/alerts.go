package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fabricpulse/dashboard/internal/alerts"
)

type AlertsCmd struct{}

func NewAlertsCmd() *AlertsCmd {
	return &AlertsCmd{}
}

func (c *AlertsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List efficiency alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := cmd.Root().PersistentFlags().GetString("server")
			if err != nil {
				return fmt.Errorf("failed to get server flag: %w", err)
			}
			search, err := cmd.Flags().GetString("search")
			if err != nil {
				return fmt.Errorf("failed to get search flag: %w", err)
			}
			priority, err := cmd.Flags().GetString("priority")
			if err != nil {
				return fmt.Errorf("failed to get priority flag: %w", err)
			}
			status, err := cmd.Flags().GetString("status")
			if err != nil {
				return fmt.Errorf("failed to get status flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			params := url.Values{}
			params.Set("search", search)
			params.Set("priority", priority)
			params.Set("status", status)

			var body struct {
				Alerts []alerts.Alert `json:"alerts"`
				Counts alerts.Counts  `json:"counts"`
			}
			if err := newAPIClient(server).get(ctx, "/api/dashboard/alerts?"+params.Encode(), &body); err != nil {
				return err
			}

			fmt.Printf("%d total, %d unread, %d high priority, %d resolved\n",
				body.Counts.Total, body.Counts.Unread, body.Counts.HighPriority, body.Counts.Resolved)

			if len(body.Alerts) == 0 {
				fmt.Println("No alerts match the current filters.")
				return nil
			}

			printAlerts(body.Alerts)
			return nil
		},
	}
	cmd.Flags().String("search", "", "substring match on employee, line or operation")
	cmd.Flags().String("priority", alerts.FilterAll, "priority filter (HIGH, MEDIUM, LOW, all)")
	cmd.Flags().String("status", alerts.FilterAll, "status filter (unread, read, resolved, all)")
	return cmd
}

func printAlerts(rows []alerts.Alert) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader([]string{"ID", "Employee", "Unit", "Line", "Operation", "Efficiency\n(%)", "Priority", "Status"})

	for _, a := range rows {
		table.Append([]string{
			a.ID,
			fmt.Sprintf("%s (%s)", a.EmployeeName, a.EmployeeCode),
			a.UnitCode,
			a.LineName,
			a.Operation,
			fmt.Sprintf("%.1f", a.Efficiency),
			string(a.Priority),
			string(a.Status),
		})
	}
	table.Render()
}
