package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/peforge/pkg/pe"
)

func inspectCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the structural view the mutators see",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print JSON instead of text",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return errors.New("inspect: file argument is required")
			}
			f, err := pe.Open(path)
			if err != nil {
				return fmt.Errorf("inspect %s: %w", path, err)
			}
			defer func() { _ = f.Close() }()

			if asJSON {
				b, err := json.MarshalIndent(f.Summary(), "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, string(b))
				return err
			}
			printSummary(os.Stdout, path, f.Summary())
			return nil
		},
	}
}

func printSummary(w io.Writer, path string, s pe.Summary) {
	fmt.Fprintf(w, "File: %s\n", path)
	fmt.Fprintf(w, "%s %s | size=%d | e_lfanew=0x%x | sections=%d\n",
		s.Format, s.Machine, s.Size, s.Lfanew, len(s.Sections))
	fmt.Fprintf(w, "  time_date_stamp:     0x%08x\n", s.TimeDateStamp)
	fmt.Fprintf(w, "  characteristics:     0x%04x\n", s.Characteristics)
	fmt.Fprintf(w, "  large_address_aware: %v\n", s.LargeAddress)
	fmt.Fprintf(w, "  checksum:            0x%08x\n", s.CheckSum)
	fmt.Fprintf(w, "  subsystem:           %d\n", s.Subsystem)
	fmt.Fprintf(w, "  offsets:             signature=0x%x optional=0x%x sections=0x%x\n",
		s.Offsets.Signature, s.Offsets.OptionalHeader, s.Offsets.SectionTable)
	if s.OverlayOffset < s.Size {
		fmt.Fprintf(w, "  overlay:             0x%x (%d bytes)\n", s.OverlayOffset, s.Size-s.OverlayOffset)
	}

	if len(s.Sections) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sections:")
	for _, sec := range s.Sections {
		fmt.Fprintf(w, "  %-8s va=0x%08x vsize=0x%08x raw=0x%08x rsize=0x%08x flags=0x%08x\n",
			sec.Name, sec.VirtualAddress, sec.VirtualSize, sec.PointerToRawData, sec.SizeOfRawData, sec.Characteristics)
	}
}
