// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"github.com/maxrathmann/ioda/lib/obs/obsengines"
)

func init() {
	var inEngine, outEngine string
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "convert INFILE OUTFILE",
			Short: "Copy an obs file between storage engines",
			Long: "" +
				"Copies every group, axis, attribute, and variable from one\n" +
				"backend to another (e.g. legacy NetCDF to HDF5) without going\n" +
				"through an ObsSpace: no distribution, no time filter.\n",
			Args: cliutil.WrapPositionalArgs(cobra.ExactArgs(2)),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inPath, outPath := args[0], args[1]
			if inEngine == "" {
				inEngine = obsengines.FormatForPath(inPath)
			}
			if outEngine == "" {
				outEngine = obsengines.FormatForPath(outPath)
			}

			src, err := obsengines.Open(ctx, inEngine, inPath, obsengines.Options{
				OpenMode: obsengines.OpenReadOnly,
			})
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			dst, err := obsengines.Open(ctx, outEngine, outPath, obsengines.Options{
				Write:      true,
				CreateMode: obsengines.CreateTruncate,
			})
			if err != nil {
				return err
			}

			if err := obsengines.CopyGroup(dst.Root(), src.Root()); err != nil {
				_ = dst.Close()
				return err
			}
			if err := dst.Close(); err != nil {
				return err
			}
			dlog.Infof(ctx, "converted %q (%s) to %q (%s)", inPath, inEngine, outPath, outEngine)
			return nil
		},
	}
	cmd.Command.Flags().StringVar(&inEngine, "engine-in", "", "input engine (default: guessed from filename)")
	cmd.Command.Flags().StringVar(&outEngine, "engine-out", "", "output engine (default: guessed from filename)")
	runners = append(runners, cmd)
}
