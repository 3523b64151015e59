package main

import "github.com/NexusSwitchboard/nexus-conn-slack/cmd"

func main() {
	cmd.Execute()
}
