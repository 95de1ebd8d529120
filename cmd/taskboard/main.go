package main

import (
	"fmt"
	"os"
	"strconv"

	"taskboard/internal/config"

	"github.com/alecthomas/kong"
)

func main() {
	envCfg, err := config.ParseEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("taskboard"),
		kong.Description("Play the task board game locally on a SQLite database."),
		kong.UsageOnError(),
		kong.Vars{
			"db_path":         envCfg.DatabasePath,
			"game_config":     envCfg.GameConfigPath,
			"task_draw_limit": strconv.Itoa(envCfg.TaskDrawLimit),
			"debug":           strconv.FormatBool(envCfg.Debug),
		},
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
