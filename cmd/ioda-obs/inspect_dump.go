// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"os"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/davecgh/go-spew/spew"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/spf13/cobra"

	"github.com/maxrathmann/ioda/lib/obs/obsengines"
	"github.com/maxrathmann/ioda/lib/obs/obsspace"
	"github.com/maxrathmann/ioda/lib/obs/obstypes"
)

type dumpedVar struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Shape  []int  `json:"shape"`
	Dims   []string `json:"dims,omitempty"`
	Values any    `json:"values"`
}

func init() {
	var spewFlag bool
	cmd := subcommand{
		Command: cobra.Command{
			Use:   "dump OBSFILE",
			Short: "Dump every data variable (coordinates excluded) of an obs file to stdout as JSON",
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

			var dump []dumpedVar
			for _, name := range scan.DataVarList() {
				v, err := eng.Root().Vars().Open(name)
				if err != nil {
					return err
				}
				cell, err := v.ReadRange(obstypes.WholeShape(v.Shape()))
				if err != nil {
					return err
				}
				dump = append(dump, dumpedVar{
					Name:   name,
					Type:   cell.Tag().String(),
					Shape:  v.Shape(),
					Dims:   scan.DimsAttachedToVars[name],
					Values: cellValues(cell),
				})
			}

			if spewFlag {
				spew.Fdump(os.Stdout, dump)
				return nil
			}
			out := bufio.NewWriter(os.Stdout)
			if err := lowmemjson.Encode(out, dump); err != nil {
				return err
			}
			if err := out.WriteByte('\n'); err != nil {
				return err
			}
			return out.Flush()
		},
	}
	cmd.Command.Flags().BoolVar(&spewFlag, "spew", false, "dump with go-spew instead of JSON")
	inspectors = append(inspectors, cmd)
}

func cellValues(cell obstypes.Cell) any {
	switch cell.Tag() {
	case obstypes.TagInt:
		vals, _ := obstypes.CellData[int32](cell)
		return vals
	case obstypes.TagFloat:
		vals, _ := obstypes.CellData[float32](cell)
		return vals
	case obstypes.TagString:
		vals, _ := obstypes.CellData[string](cell)
		return vals
	default:
		vals, _ := obstypes.CellData[obstypes.DateTime](cell)
		strs := make([]string, len(vals))
		for i, dt := range vals {
			strs[i] = dt.String()
		}
		return strs
	}
}
