// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"

	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/datawire/ocibuild/pkg/cliutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maxrathmann/ioda/lib/profile"
	"github.com/maxrathmann/ioda/lib/textui"
)

type subcommand struct {
	cobra.Command
	RunE func(*cobra.Command, []string) error
}

var inspectors, runners []subcommand

func main() {
	logLevelFlag := textui.LogLevelFlag{
		Level: dlog.LogLevelInfo,
	}
	var logJSONFlag bool

	argparser := &cobra.Command{
		Use:   "ioda-obs {[flags]|SUBCOMMAND}",
		Short: "Inspect and ingest observation files",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,

		SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
		SilenceUsage:  true, // our FlagErrorFunc will handle it

		CompletionOptions: cobra.CompletionOptions{ //nolint:exhaustivestruct
			DisableDefaultCmd: true,
		},
	}
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().Var(&logLevelFlag, "verbosity", "set the verbosity")
	argparser.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "emit logs as JSON lines")
	profileStop := profile.AddProfileFlags(argparser.PersistentFlags(), "profile.")

	argparserInspect := &cobra.Command{
		Use:   "inspect {[flags]|SUBCOMMAND}",
		Short: "Inspect (but don't modify) an obs file",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,
	}
	argparser.AddCommand(argparserInspect)

	argparserRun := &cobra.Command{
		Use:   "run {[flags]|SUBCOMMAND}",
		Short: "Run an ingest pipeline",

		Args: cliutil.WrapPositionalArgs(cliutil.OnlySubcommands),
		RunE: cliutil.RunSubcommands,
	}
	argparser.AddCommand(argparserRun)

	for _, cmdgrp := range []struct {
		parent   *cobra.Command
		children []subcommand
	}{
		{argparserInspect, inspectors},
		{argparserRun, runners},
	} {
		for _, child := range cmdgrp.children {
			cmd := child.Command
			runE := child.RunE
			cmd.RunE = func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				var logger dlog.Logger
				if logJSONFlag {
					inner := logrus.New()
					inner.SetLevel(logrus.TraceLevel)
					inner.SetFormatter(&logrus.JSONFormatter{})
					logger = dlog.WrapLogrus(inner)
				} else {
					logger = textui.NewLogger(os.Stderr, logLevelFlag.Level)
				}
				ctx = dlog.WithLogger(ctx, logger)

				grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
					EnableSignalHandling: true,
				})
				grp.Go("main", func(ctx context.Context) error {
					cmd.SetContext(ctx)
					return runE(cmd, args)
				})
				return grp.Wait()
			}
			cmdgrp.parent.AddCommand(&cmd)
		}
	}

	err := argparser.ExecuteContext(context.Background())
	if perr := profileStop(); perr != nil && err == nil {
		err = perr
	}
	if err != nil {
		textui.Fprintf(os.Stderr, "%v: error: %v\n", argparser.CommandPath(), err)
		os.Exit(1)
	}
}
