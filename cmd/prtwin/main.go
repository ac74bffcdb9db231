package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/prtwin/internal/app"
	"github.com/tildaslashalef/prtwin/internal/commands"
)

// Version information - populated at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
	Author    = "unknown"
	Email     = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:  "prtwin",
		Usage: "Derive new pull requests from reference pull requests",
		Description: "Prtwin fetches a reference pull request, derives the structured\n" +
			"differences needed to satisfy a stated intent, confirms each one\n" +
			"interactively, and applies the confirmed set as a new changeset.\n\n" +
			"When run without subcommands, prtwin runs the create command.",
		Version: Version,
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Authors: []*cli.Author{
			{
				Name:  Author,
				Email: Email,
			},
		},
		Before: func(c *cli.Context) error {
			application, err := app.New()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			// Store the app instance in the context for later use
			c.App.Metadata = map[string]interface{}{
				"app": application,
			}

			return nil
		},
		After: func(c *cli.Context) error {
			if app, ok := c.App.Metadata["app"].(*app.App); ok {
				return app.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.CreateCommand(),
		},
		Flags: commands.CreateCommand().Flags,
		Action: func(c *cli.Context) error {
			// Default action is to run the create command
			return commands.CreateCommand().Action(c)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
