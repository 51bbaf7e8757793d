//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flags"
	"github.com/mongoose-os/nuisp/cli/flash/numicro"
)

func info(ctx context.Context) error {
	s, err := connect(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	dev := s.driver.Device()
	fmt.Fprintf(w, "Part:\t")
	color.New(color.FgGreen, color.Bold).Fprintf(w, "%s", dev.Name)
	fmt.Fprintf(w, " (chip ID 0x%08x)\n", dev.ChipID)
	for _, r := range s.target.RAM() {
		fmt.Fprintf(w, "RAM:\t%d @ 0x%08x\n", r.Length, r.Start)
	}
	fmt.Fprintf(w, "\nRegion\tStart\tEnd\tBlock\n")
	for _, f := range s.target.Flash() {
		fmt.Fprintf(w, "%s\t0x%08x\t0x%08x\t%d\n", f.Name, f.Start, f.End(), f.BlockSize)
	}
	if uc, out, err := s.driver.ReadConfig(ctx); err != nil {
		color.New(color.FgRed).Fprintf(w, "\nFailed to read config: %s\n", err)
	} else if out != numicro.OutcomeVerified {
		color.New(color.FgYellow).Fprintf(w, "\nConfig read %s, boot source and lock state unknown\n", out)
	} else {
		fmt.Fprintf(w, "\nBoot:\t%s\n", uc.BootSource())
		if uc.Locked() {
			fmt.Fprintf(w, "Lock:\t")
			color.New(color.FgRed).Fprintf(w, "locked")
			fmt.Fprintf(w, "\n")
		} else {
			fmt.Fprintf(w, "Lock:\tnot locked\n")
		}
	}
	fmt.Fprintf(w, "\nCommands (%v):\n", s.target.CommandGroups())
	for _, c := range s.target.Commands() {
		fmt.Fprintf(w, "  %s\t%s\n", c.Name(), c.Help())
	}
	return errors.Trace(w.Flush())
}

func listDevices(ctx context.Context) error {
	if err := flags.LoadDevices(); err != nil {
		return errors.Trace(err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Chip ID\tName\tRAM\tAPROM\tLDROM\tSPROM\n")
	for _, d := range numicro.Devices() {
		fmt.Fprintf(w, "0x%08x\t%s\t%d\t%s\t%s\t%s\n",
			d.ChipID, d.Name, d.RAMSize, regionSize(d.APROM), regionSize(d.LDROM), regionSize(d.SPROM))
	}
	return errors.Trace(w.Flush())
}

func regionSize(rs numicro.RegionSize) string {
	if rs.Size == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", rs.Size, rs.BlockSize)
}
