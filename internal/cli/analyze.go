package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fabricpulse/dashboard/internal/insights"
)

type AnalyzeCmd struct{}

func NewAnalyzeCmd() *AnalyzeCmd {
	return &AnalyzeCmd{}
}

func (c *AnalyzeCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Trigger an analysis run over the current selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := cmd.Root().PersistentFlags().GetString("server")
			if err != nil {
				return fmt.Errorf("failed to get server flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var body struct {
				Summary         insights.Summary    `json:"summary"`
				Insights        []insights.Insight  `json:"insights"`
				Prediction      insights.Prediction `json:"prediction"`
				Recommendations []string            `json:"recommendations"`
			}
			if err := newAPIClient(server).post(ctx, "/api/dashboard/analyze", map[string]string{}, &body); err != nil {
				return err
			}

			fmt.Printf("Average efficiency: %.1f%% across %d operators (%d low, %d high)\n",
				body.Summary.AvgEfficiency, body.Summary.TotalOperators,
				body.Summary.LowPerformers, body.Summary.HighPerformers)
			fmt.Printf("Prediction: %s, %.1f%% next cycle (confidence %.2f)\n",
				body.Prediction.Trend, body.Prediction.Efficiency, body.Prediction.Confidence)

			if len(body.Insights) > 0 {
				fmt.Println("\nInsights:")
				for _, ins := range body.Insights {
					fmt.Printf("  [%s/%s] %s: %s\n", ins.Kind, ins.Priority, ins.Title, ins.Description)
				}
			}
			if len(body.Recommendations) > 0 {
				fmt.Println("\nRecommendations:")
				for _, rec := range body.Recommendations {
					fmt.Println("  -", rec)
				}
			}
			return nil
		},
	}
}
