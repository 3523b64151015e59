package cmd

import (
	"os"

	"github.com/NexusSwitchboard/nexus-conn-slack/conf"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	debug   bool
)

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Version: conf.GitVersion,
		Use:     conf.Executable,
		Short:   "Nexus connection for Slack",
		Long: `Connects Slack to a Nexus host. Slash commands, Events API callbacks and
interactive payloads are verified against the app's signing secret and
dispatched to plugins; slash commands are split into sub-commands by their
first word. Permissions are managed as groups persisted in a database.`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.OnInitialize(initConfig)
	rootCmd := newRootCmd()
	setupFlags(rootCmd)
	addSubcommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func setupFlags(c *cobra.Command) {
	c.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/."+conf.Executable+".yaml)")
	c.MarkPersistentFlagFilename("config")
	c.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func addSubcommands(c *cobra.Command) {
	c.AddCommand(newVersionCmd())
	c.AddCommand(newServerCmd())
	c.AddCommand(newWebhookCmd())
}

func initConfig() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			log.Fatal().Err(err).Msg("Unable to find home directory")
		}

		viper.AddConfigPath(home)
		viper.SetConfigName("." + conf.Executable)
	}

	conf.SetDefaults(viper.GetViper())
	conf.BindEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
	}
}

// loadConfig decodes the configuration initConfig prepared.
func loadConfig() (conf.Config, error) {
	return conf.Load(viper.GetViper())
}
