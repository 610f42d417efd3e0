package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/username/easyledger/backend/src/commands"
	"github.com/username/easyledger/backend/src/config"
	"github.com/username/easyledger/backend/src/logger"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commands.Register(commander)

	flag.Parse()

	config.LoadConfig()
	// stdout carries command output (exports, reports), so logs go to stderr.
	logger.InitLoggerWithWriter(os.Stderr, config.Cfg.LogLevel)

	os.Exit(int(commander.Execute(context.Background())))
}
