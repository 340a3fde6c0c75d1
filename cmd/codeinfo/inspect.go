// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/safepoint/codeinfo"
	"github.com/safepoint/codeinfo/internal/mapfile"
	"github.com/safepoint/codeinfo/target"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var heading = color.New(color.FgCyan, color.Bold)

func newInspectCommand(o *options, stdout io.Writer) *cobra.Command {
	var archName string

	cmd := &cobra.Command{
		Use:   "inspect file...",
		Short: "Decode and dump CodeInfo blobs",
		Args:  cobra.MinimumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := target.ParseArch(archName)
			if err != nil {
				return err
			}

			for _, path := range args {
				if err := inspect(stdout, path, arch); err != nil {
					return xerrors.Errorf("%s: %w", path, err)
				}
				o.log.Debug().Str("path", path).Msg("inspected")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&archName, "arch", target.HostArch().String(), "target architecture (amd64 or arm64)")

	return cmd
}

func inspect(w io.Writer, path string, arch target.Arch) error {
	f, err := mapfile.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ci, err := codeinfo.Load(f.Bytes(), arch)
	if err != nil {
		return err
	}

	heading.Fprintf(w, "%s: %d bytes\n", path, ci.Size())
	return ci.Dump(w)
}
