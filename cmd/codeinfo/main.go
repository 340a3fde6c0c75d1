// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Program codeinfo converts LLVM stack maps into CodeInfo and inspects the
// results.
package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/safepoint/codeinfo/config"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string

	config config.Config
	log    zerolog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	o := &options{
		config: config.Default(),
		log:    zerolog.Nop(),
	}

	root := &cobra.Command{
		Use:           "codeinfo",
		Short:         "CodeInfo safepoint metadata tool",
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.init(stderr)
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "TOML configuration file")
	flags.StringVar(&o.logLevel, "log-level", "", "log level (overrides configuration)")

	root.AddCommand(
		newConvertCommand(o),
		newInspectCommand(o, stdout),
		newStackMapsCommand(o, stdout),
	)

	return root
}

func (o *options) init(stderr io.Writer) error {
	if o.configPath != "" {
		c, err := config.Load(o.configPath)
		if err != nil {
			return err
		}
		o.config = c
	}

	if o.logLevel != "" {
		o.config.LogLevel = o.logLevel
	}

	level, err := o.config.Level()
	if err != nil {
		return err
	}

	o.log = zerolog.New(zerolog.ConsoleWriter{
		Out:        stderr,
		TimeFormat: time.TimeOnly,
	}).Level(level).With().Timestamp().Logger()

	return nil
}

func main() {
	root := newRootCommand(os.Stdout, os.Stderr)

	if err := root.Execute(); err != nil {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg(root.Name())
	}
}
