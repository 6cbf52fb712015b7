package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the Downforce companion server"`
	Migrate MigrateCmd       `cmd:"" help:"Manage the Postgres schema"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("downforce"),
		kong.Description("Room server for the Downforce board game companion"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
