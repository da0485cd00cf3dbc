package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

type AskCmd struct{}

func NewAskCmd() *AskCmd {
	return &AskCmd{}
}

func (c *AskCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the AI assistant about the production floor",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server, err := cmd.Root().PersistentFlags().GetString("server")
			if err != nil {
				return fmt.Errorf("failed to get server flag: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			question := strings.Join(args, " ")
			var body struct {
				Answer string `json:"answer"`
			}
			req := map[string]string{"question": question}
			if err := newAPIClient(server).post(ctx, "/api/dashboard/ask", req, &body); err != nil {
				return err
			}

			fmt.Println(body.Answer)
			return nil
		},
	}
}
