package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/peforge/internal/logger"
	"github.com/samcharles93/peforge/internal/mutator"
	"github.com/samcharles93/peforge/internal/pipeline"
)

type mutateOptions struct {
	in      string
	out     string
	modules string
	seed    uint64
	seedSet bool
	report  string
}

func mutateCmd() *cli.Command {
	var opts mutateOptions

	return &cli.Command{
		Name:      "mutate",
		Usage:     "Apply mutation modules to a PE file",
		ArgsUsage: "[input]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "in",
				Aliases:     []string{"i"},
				Usage:       "input PE file",
				Destination: &opts.in,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path (default: <name>.mutated<ext> or $" + envPeforgeOutDir + "/<name>)",
				Destination: &opts.out,
			},
			&cli.StringFlag{
				Name:        "modules",
				Aliases:     []string{"m"},
				Usage:       "comma separated modules to run, in order (default: all)",
				Destination: &opts.modules,
			},
			&cli.Uint64Flag{
				Name:        "seed",
				Usage:       "seed for modules that draw random values (random when unset)",
				Destination: &opts.seed,
			},
			&cli.StringFlag{
				Name:        "report",
				Usage:       "write a JSON run report to this path",
				Destination: &opts.report,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if opts.in == "" {
				opts.in = cmd.Args().First()
			}
			if opts.in == "" {
				return errors.New("mutate: --in or an input argument is required")
			}
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			opts.seedSet = cmd.IsSet("seed")
			applyMutateConfig(cmd, cfg, &opts)
			return runMutate(ctx, opts)
		},
	}
}

func applyMutateConfig(c *cli.Command, cfg Config, opts *mutateOptions) {
	if len(cfg.Modules) > 0 && !c.IsSet("modules") {
		opts.modules = strings.Join(cfg.Modules, ",")
	}
	if cfg.Seed != nil && !opts.seedSet {
		opts.seed = *cfg.Seed
		opts.seedSet = true
	}
}

func runMutate(ctx context.Context, opts mutateOptions) error {
	log := logger.FromContext(ctx)

	mods, err := mutator.Select(mutator.ParseList(opts.modules))
	if err != nil {
		return err
	}

	st, err := os.Stat(opts.in)
	if err != nil {
		return err
	}
	if st.IsDir() {
		return fmt.Errorf("mutate: %s is a directory", opts.in)
	}
	outPath, err := resolveOutPath(opts.in, opts.out)
	if err != nil {
		return err
	}

	buf, err := os.ReadFile(opts.in)
	if err != nil {
		return err
	}

	p := pipeline.New(mods, log.With("file", opts.in))
	rep, err := p.Run(ctx, buf, resolveSeed(opts.seed, opts.seedSet))
	if err != nil {
		return fmt.Errorf("mutate %s: %w", opts.in, err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if err := atomic.WriteFile(outPath, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	// atomic.WriteFile doesn't carry permissions over to new files
	if err := os.Chmod(outPath, st.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", outPath, err)
	}

	if opts.report != "" {
		b, err := rep.MarshalIndent()
		if err != nil {
			return err
		}
		if err := atomic.WriteFile(opts.report, bytes.NewReader(b)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	log.Info("wrote mutated image", "out", outPath, "changed", rep.Changed(), "seed", rep.Seed)
	return nil
}
