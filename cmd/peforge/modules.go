package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/peforge/internal/mutator"
)

func modulesCmd() *cli.Command {
	return &cli.Command{
		Name:  "modules",
		Usage: "List mutation modules in default run order",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			for _, name := range mutator.Names() {
				fmt.Fprintln(cmd.Root().Writer, name)
			}
			return nil
		},
	}
}
