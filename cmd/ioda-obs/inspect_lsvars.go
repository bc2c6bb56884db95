// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"
	"strings"

	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"github.com/maxrathmann/ioda/lib/maps"
	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obsspace"
	"github.com/maxrathmann/ioda/lib/textui"
)

func init() {
	inspectors = append(inspectors, subcommand{
		Command: cobra.Command{
			Use:   "ls-vars OBSFILE",
			Short: "List the axes and variables of an obs file",
			Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(1)),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			eng, err := obsengines.Open(ctx, obsengines.FormatForPath(path), path, obsengines.Options{
				OpenMode: obsengines.OpenReadOnly,
			})
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			scan, err := obsspace.Scan(eng.Root())
			if err != nil {
				return err
			}

			layout := "modern"
			if scan.Legacy {
				layout = "legacy"
			}
			textui.Fprintf(os.Stdout, "%s: %s layout, nlocs=%v, nvars=%v\n",
				path, layout, textui.Humanized(scan.NLocsGlobal), scan.NVars)
			for _, axis := range maps.SortedKeys(scan.Axes) {
				textui.Fprintf(os.Stdout, "axis %-8s = %v\n", axis, textui.Humanized(scan.Axes[axis]))
			}
			for _, name := range scan.DataVarList() {
				textui.Fprintf(os.Stdout, "var  %-40s dims=(%s)\n",
					name, strings.Join(scan.DimsAttachedToVars[name], ","))
			}
			return nil
		},
	})
}
