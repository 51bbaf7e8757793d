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
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/nuisp/cli/flags"
	"github.com/mongoose-os/nuisp/cli/flash/common"
	"github.com/mongoose-os/nuisp/cli/flash/numicro"
	"github.com/mongoose-os/nuisp/cli/ourutil"
	"github.com/mongoose-os/nuisp/common/image"
)

var (
	hexMaxGap     int
	numicroDelays struct {
		enable, erase, write, chipErase time.Duration
	}
)

// register advanced flash specific flags
func init() {
	flag.IntVar(&hexMaxGap, "hex-max-gap", 4096,
		"Gaps in .hex images shorter than this are filled with 0xff, longer ones are skipped")

	defaults := numicro.DefaultConfig()
	flag.DurationVar(&numicroDelays.enable, "numicro-enable-settle", defaults.EnableSettle,
		"Settling time after enabling the ISP clock and controller")
	flag.DurationVar(&numicroDelays.erase, "numicro-erase-delay", defaults.EraseDelay,
		"Delay after each page erase")
	flag.DurationVar(&numicroDelays.write, "numicro-write-delay", defaults.WriteDelay,
		"Delay after each word write")
	flag.DurationVar(&numicroDelays.chipErase, "numicro-chip-erase-settle", defaults.ChipEraseSettle,
		"Delay after chip erase")

	// add these flags to the hiddenFlags list so that they can be hidden and shown again with --helpfull
	flag.VisitAll(func(f *flag.Flag) {
		if strings.HasPrefix(f.Name, "numicro-") || f.Name == "hex-max-gap" {
			hiddenFlags = append(hiddenFlags, f.Name)
		}
	})
}

func numicroDelayOptions() []numicro.Option {
	return []numicro.Option{
		numicro.WithDelays(numicroDelays.enable, numicroDelays.erase, numicroDelays.write, numicroDelays.chipErase),
	}
}

func flash(ctx context.Context) error {
	if flag.NArg() != 2 {
		return errors.Errorf("usage: flash <file>")
	}
	fname := flag.Arg(1)
	img, err := image.LoadFile(fname, *flags.Addr, 0xff, hexMaxGap)
	if err != nil {
		return errors.Annotatef(err, "failed to load image")
	}
	for _, seg := range img.Segments {
		glog.V(1).Infof("%s: %s", fname, seg)
	}

	s, err := connect(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.close()

	// Check everything fits before erasing anything.
	for _, seg := range img.Segments {
		if err := checkSegment(s.target, seg); err != nil {
			return errors.Trace(err)
		}
	}
	segs, err := mergeSegments(s.target, img.Segments)
	if err != nil {
		return errors.Trace(err)
	}

	start := time.Now()
	opts := &common.ProgramOpts{
		Verify: *flags.Verify,
		Progress: func(f *common.Flash, addr uint32, length int) {
			ourutil.Reportf("  %s: %d @ 0x%08x", f.Name, length, addr)
		},
	}
	for _, seg := range segs {
		ourutil.Reportf("Writing %s...", seg)
		if err := common.Program(ctx, s.target, seg.Addr, seg.Data, opts); err != nil {
			return errors.Annotatef(err, "failed to program %s", seg)
		}
	}
	verified := ""
	if *flags.Verify {
		verified = ", verified"
	}
	color.New(color.FgGreen).Fprintf(color.Error, "Wrote %d bytes in %.2f seconds%s\n",
		img.Size(), time.Since(start).Seconds(), verified)

	if *flags.NoRun {
		return nil
	}
	return errors.Trace(s.run(ctx))
}

// checkSegment makes sure every byte of seg lands in a registered flash region.
func checkSegment(t *common.Target, seg *image.Segment) error {
	addr, end := uint64(seg.Addr), uint64(seg.Addr)+uint64(len(seg.Data))
	for addr < end {
		f := t.FlashAt(uint32(addr))
		if f == nil {
			return errors.NotValidf("image data at 0x%08x, outside of flash", addr)
		}
		addr = uint64(f.Start) + uint64(f.Length)
	}
	return nil
}

// mergeSegments sorts segments by address and joins the ones that share
// an erase block, filling the gap with the erased value.
// Programming them separately would erase the data written by the first one.
func mergeSegments(t *common.Target, segs []*image.Segment) ([]*image.Segment, error) {
	sorted := make([]*image.Segment, 0, len(segs))
	for _, seg := range segs {
		if len(seg.Data) > 0 {
			sorted = append(sorted, seg)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Addr < sorted[j].Addr })
	var res []*image.Segment
	for _, seg := range sorted {
		if len(res) == 0 {
			res = append(res, seg)
			continue
		}
		prev := res[len(res)-1]
		if uint64(seg.Addr) < uint64(prev.Addr)+uint64(len(prev.Data)) {
			return nil, errors.NotValidf("overlapping segments %s and %s", prev, seg)
		}
		last := prev.End() - 1
		f := t.FlashAt(last)
		if f == nil || f != t.FlashAt(seg.Addr) || f.BlockSize <= 0 {
			res = append(res, seg)
			continue
		}
		blockEnd := uint64(f.Start) + (uint64(last-f.Start)/uint64(f.BlockSize)+1)*uint64(f.BlockSize)
		if uint64(seg.Addr) >= blockEnd {
			res = append(res, seg)
			continue
		}
		glog.V(1).Infof("%s and %s share a %s block, merging", prev, seg, f.Name)
		data := make([]byte, 0, int(seg.End()-prev.Addr))
		data = append(data, prev.Data...)
		for i := prev.End(); i < seg.Addr; i++ {
			data = append(data, f.Erased)
		}
		data = append(data, seg.Data...)
		res[len(res)-1] = &image.Segment{Addr: prev.Addr, Data: data}
	}
	return res, nil
}
