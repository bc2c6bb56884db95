// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"github.com/maxrathmann/ioda/lib/obs/obsconfig"
	"github.com/maxrathmann/ioda/lib/obs/obsdist"
	"github.com/maxrathmann/ioda/lib/obs/obsspace"
	"github.com/maxrathmann/ioda/lib/textui"
)

func init() {
	runners = append(runners, subcommand{
		Command: cobra.Command{
			Use:   "ingest CONFIG.yaml",
			Short: "Load an obs file through the full pipeline",
			Long: "" +
				"Runs scan -> distribute -> time-filter -> project for the\n" +
				"configured obs file and prints a summary of the resulting\n" +
				"ObsSpace.  When `obsdataout.obsfile` is configured, the\n" +
				"container is saved back out through the matching engine.\n",
			Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := obsconfig.Read(args[0])
			if err != nil {
				return err
			}

			s, err := obsspace.Load(ctx, cfg, obsdist.SerialComm{})
			if err != nil {
				return err
			}

			textui.Fprintf(os.Stdout, "ObsSpace %q: nlocs=%v nvars=%v nrecs=%v window=(%v, %v]\n",
				s.ObsName(), textui.Humanized(s.NLocs()), s.NVars(), s.NRecs(),
				s.WindowStart(), s.WindowEnd())
			for _, view := range s.ByGroup() {
				textui.Fprintf(os.Stdout, "  %-40s %-8v shape=%v\n",
					obsspace.Key{Group: view.Group, Name: view.Name}.FlatName(),
					view.Tag, view.Shape)
			}

			if out := cfg.ObsDataOut.ObsFile; out != "" {
				if err := s.Save(ctx, out); err != nil {
					return err
				}
				dlog.Infof(ctx, "saved ObsSpace to %q", out)
			}
			return nil
		},
	})
}
