package conf

// Overridden at build time with -ldflags "-X github.com/NexusSwitchboard/nexus-conn-slack/conf.GitVersion=..."
var (
	Executable = "nexus-slack"
	GitVersion = "dev"
)
