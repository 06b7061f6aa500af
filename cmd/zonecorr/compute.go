package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/zonecorr/internal/app"
	"github.com/okian/zonecorr/internal/domain/parser"
)

const cliUser = "cli"

type computeFlags struct {
	mode    string
	ranges  string
	targets string
	reactor string
	asJSON  bool
}

func newComputeCmd(c *cli) *cobra.Command {
	var f computeFlags
	cmd := &cobra.Command{
		Use:   "compute [flags] <temperatures...>",
		Short: "Compute corrections for one reading",
		Long: `Compute corrections for one reading and print the operator message.

Temperatures are 4 values (B C D and one target) or 6 values (B C D and per-zone
targets). With --targets only the 3 current temperatures are given.`,
		Example: `  zonecorr compute 1008.5 1003.7 1001.2 1000
  zonecorr compute --mode bprt --ranges "+2 0 +1 -1 0 -1" 1008.5 1003.7 1001.2 1000
  zonecorr compute --targets "1045 1040 1040" 1050 1042 1039`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(cmd, c, f, args)
		},
	}
	cmd.Flags().StringVar(&f.mode, "mode", "pc", "mode: pc or bprt")
	cmd.Flags().StringVar(&f.ranges, "ranges", "", `working ranges "maxB minB maxC minC maxD minD"`)
	cmd.Flags().StringVar(&f.targets, "targets", "", "1 uniform target or 3 per-zone targets")
	cmd.Flags().StringVar(&f.reactor, "reactor", "R1", "reactor name shown in the message")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the full outcome as JSON")
	return cmd
}

func runCompute(cmd *cobra.Command, c *cli, f computeFlags, args []string) error {
	ctx := cmd.Context()
	svc, err := service.New(service.WithConfig(c.cfg))
	if err != nil {
		return err
	}

	if f.ranges != "" {
		if _, err := svc.SaveRanges(ctx, cliUser, f.reactor, f.ranges); err != nil {
			return err
		}
	}

	input := strings.Join(args, " ")
	var out service.Outcome
	if f.targets != "" {
		targets, err := parser.ParseTargets(f.targets)
		if err != nil {
			return err
		}
		in, err := parser.Parse(input)
		if err != nil {
			return err
		}
		if in.HasTargets() {
			return errors.New("targets given twice: pass only the 3 current temperatures with --targets")
		}
		out, err = svc.ComputeValues(ctx, service.ValuesRequest{
			UserID:    cliUser,
			ReactorID: f.reactor,
			Mode:      f.mode,
			Current:   in.Current,
			Targets:   &targets,
		})
		if err != nil {
			return err
		}
	} else {
		out, err = svc.Compute(ctx, service.ComputeRequest{
			UserID:    cliUser,
			ReactorID: f.reactor,
			Mode:      f.mode,
			Input:     input,
		})
		if err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if f.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err = fmt.Fprintln(w, out.Message)
	return err
}
