// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io"

	"github.com/safepoint/codeinfo/internal/mapfile"
	"github.com/safepoint/codeinfo/llvm"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

func newStackMapsCommand(o *options, stdout io.Writer) *cobra.Command {
	var faultMapPath string

	cmd := &cobra.Command{
		Use:   "stackmaps file",
		Short: "Dump an LLVM stack map section",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dumpStackMaps(stdout, args[0]); err != nil {
				return xerrors.Errorf("%s: %w", args[0], err)
			}
			if faultMapPath != "" {
				if err := dumpFaultMaps(stdout, faultMapPath); err != nil {
					return xerrors.Errorf("%s: %w", faultMapPath, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&faultMapPath, "faultmaps", "", "also dump an LLVM fault map section")

	return cmd
}

func dumpStackMaps(w io.Writer, path string) error {
	f, err := mapfile.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sm, err := llvm.ParseStackMap(f.Bytes())
	if err != nil {
		return err
	}

	heading.Fprintf(w, "%s:\n", path)
	return sm.Dump(w)
}

func dumpFaultMaps(w io.Writer, path string) error {
	f, err := mapfile.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fm, err := llvm.ParseFaultMap(f.Bytes())
	if err != nil {
		return err
	}

	heading.Fprintf(w, "%s:\n", path)
	return fm.Dump(w)
}
