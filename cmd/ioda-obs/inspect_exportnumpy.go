// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"

	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/kshedden/gonpy"
	"github.com/spf13/cobra"

	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

func init() {
	inspectors = append(inspectors, subcommand{
		Command: cobra.Command{
			Use:   "export-numpy OBSFILE VARIABLE OUT.npy",
			Short: "Export one numeric variable as a .npy array",
			Args:  cliutil.WrapPositionalArgs(cobra.ExactArgs(3)),
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, varName, outPath := args[0], args[1], args[2]

			eng, err := obsengines.Open(ctx, obsengines.FormatForPath(path), path, obsengines.Options{
				OpenMode: obsengines.OpenReadOnly,
			})
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			v, err := eng.Root().Vars().Open(varName)
			if err != nil {
				return err
			}
			cell, err := v.ReadRange(obstypes.WholeShape(v.Shape()))
			if err != nil {
				return err
			}

			w, err := gonpy.NewFileWriter(outPath)
			if err != nil {
				return err
			}
			w.Shape = v.Shape()
			switch cell.Tag() {
			case obstypes.TagFloat:
				vals, _ := obstypes.CellData[float32](cell)
				err = w.WriteFloat32(vals)
			case obstypes.TagInt:
				vals, _ := obstypes.CellData[int32](cell)
				err = w.WriteInt32(vals)
			default:
				return fmt.Errorf("variable %q has type %v; only numeric variables export to numpy",
					varName, cell.Tag())
			}
			if err != nil {
				return err
			}
			dlog.Infof(ctx, "wrote %d elements of %q to %q", cell.Len(), varName, outPath)
			return nil
		},
	})
}
