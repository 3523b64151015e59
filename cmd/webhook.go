package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NexusSwitchboard/nexus-conn-slack/webhooks"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newWebhookCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "webhook",
		Short: "Work with configured incoming webhooks",
	}
	c.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured webhook names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range webhookClient().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	c.AddCommand(&cobra.Command{
		Use:   "send NAME TEXT...",
		Short: "Post a message to a configured webhook",
		Args:  cobra.MinimumNArgs(2),
		RunE:  sendWebhook,
	})
	return c
}

// webhookClient reads only the webhooks section so that posting does not
// need Slack credentials.
func webhookClient() *webhooks.Client {
	return webhooks.New(viper.GetStringMapString("webhooks"), nil)
}

func sendWebhook(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	if err := webhookClient().SendText(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Posted to %s\n", args[0])
	return nil
}
