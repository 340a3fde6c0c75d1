// Copyright (c) 2026 Timo Savola. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/safepoint/codeinfo/internal/mapfile"
	"github.com/safepoint/codeinfo/producer"
	"github.com/safepoint/codeinfo/target"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

type convertFlags struct {
	arch      string
	stackMaps string
	faultMaps string
	unit      string
	outDir    string
}

func newConvertCommand(o *options) *cobra.Command {
	f := new(convertFlags)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Produce CodeInfo for every method of a compilation unit",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return convert(o, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.arch, "arch", target.HostArch().String(), "target architecture (amd64 or arm64)")
	flags.StringVar(&f.stackMaps, "stackmaps", "", "LLVM stack map section file")
	flags.StringVar(&f.faultMaps, "faultmaps", "", "LLVM fault map section file")
	flags.StringVar(&f.unit, "unit", "", "compilation unit description (CBOR)")
	flags.StringVarP(&f.outDir, "out", "o", ".", "output directory")
	cmd.MarkFlagRequired("stackmaps")
	cmd.MarkFlagRequired("unit")

	return cmd
}

func convert(o *options, f *convertFlags) error {
	arch, err := target.ParseArch(f.arch)
	if err != nil {
		return err
	}

	abi, err := target.ForArch(arch)
	if err != nil {
		return err
	}

	unitData, err := os.ReadFile(f.unit)
	if err != nil {
		return err
	}

	unit, err := producer.UnmarshalUnit(unitData)
	if err != nil {
		return xerrors.Errorf("%s: %w", f.unit, err)
	}

	stackMaps, err := mapfile.Open(f.stackMaps)
	if err != nil {
		return err
	}
	defer stackMaps.Close()

	var faultMapData []byte
	if f.faultMaps != "" {
		faultMaps, err := mapfile.Open(f.faultMaps)
		if err != nil {
			return err
		}
		defer faultMaps.Close()
		faultMapData = faultMaps.Bytes()
	}

	p, err := producer.New(abi, stackMaps.Bytes(), faultMapData, unit, o.config, o.log)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return err
	}

	var result *multierror.Error

	for i, m := range unit.Methods {
		id := producer.MethodID(i)

		data, err := p.Produce(id)
		if err != nil {
			result = multierror.Append(result, xerrors.Errorf("method %d (%s): %w", id, m.Name, err))
			continue
		}

		path := filepath.Join(f.outDir, outputName(id))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			result = multierror.Append(result, err)
			continue
		}

		o.log.Info().Uint32("method", uint32(id)).Str("name", m.Name).Str("path", path).Int("size", len(data)).Msg("written")
	}

	return result.ErrorOrNil()
}

func outputName(id producer.MethodID) string {
	return fmt.Sprintf("%d.codeinfo", id)
}
