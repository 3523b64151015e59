package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NexusSwitchboard/nexus-conn-slack/core"
	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/groups"
	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/help"
	"github.com/NexusSwitchboard/nexus-conn-slack/plugins/user_info"
	"github.com/NexusSwitchboard/nexus-conn-slack/router"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var adminCommand string

func newServerCmd() *cobra.Command {
	c := &cobra.Command{
		Use:     "server",
		Aliases: []string{"serve"},
		Short:   "Run the connection",
		Long:    `Connect to Slack and serve the events, interactions and commands endpoints`,
		RunE:    server,
	}
	c.Flags().StringVar(&adminCommand, "admin-command", "/nexus", "slash command the built-in admin actions are registered under")
	return c
}

// AdminCommandRoute is the built-in slash command: help by default plus
// group management and user lookup.
func AdminCommandRoute(command string) router.SlashCommandRoute {
	return router.SlashCommandRoute{
		Route: router.Route{
			Name:        "nexus",
			Description: "Nexus administration",
		},
		Command: command,
		SubCommands: map[string]router.SubCommandRoute{
			"help":   *help.GetSubCommandRoute(),
			"groups": *groups.GetSubCommandRoute(),
			"whois":  *user_info.GetSubCommandRoute(),
		},
		DefaultSubCommand: "help",
		ImmediateResponse: "Working on it...",
	}
}

func server(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	conn, err := core.Setup(cfg)
	if err != nil {
		return err
	}
	conn.Router.AddSlashCommandRoute(AdminCommandRoute(adminCommand))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := conn.Connect(ctx); err != nil {
		return err
	}

	runErr := conn.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Disconnect(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Disconnect")
	}
	return runErr
}
