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
package numicro

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flash/common"
	"github.com/mongoose-os/nuisp/cli/flash/common/cortex"
)

const commandGroup = "M032xxxxx"

// Driver holds the per-target state of a recognized part and implements
// the flash callbacks of its regions.
type Driver struct {
	dev *Device
	isp *ISP
}

func (d *Driver) Device() *Device {
	return d.dev
}

func (d *Driver) ISP() *ISP {
	return d.isp
}

// Probe identifies the part and, on success, registers its RAM, flash regions
// and commands on t. Not recognizing the part is not an error.
func Probe(ctx context.Context, t *common.Target, opts ...Option) (*Driver, error) {
	// Other cores may not even have the chip ID register.
	if cortex.PartNo(t.CPUID) != cortex.PartCortexM0 {
		glog.V(1).Infof("CPUID 0x%08x is not a Cortex-M0", t.CPUID)
		return nil, nil
	}
	storedName := t.Driver
	chipID, err := t.Mem.ReadTargetReg(ctx, regChipID)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read chip ID")
	}
	glog.Infof("Chip ID 0x%08x", chipID)
	dev := LookupDevice(chipID)
	if dev == nil {
		t.Driver = storedName
		return nil, nil
	}
	d := &Driver{dev: dev, isp: NewISP(t.Mem, t.Delayer, opts...)}
	t.Driver = dev.Name
	t.AddRAM(ramBase, dev.RAMSize)
	for _, r := range dev.regions() {
		f := &common.Flash{
			Name:      r.name,
			Start:     r.base,
			Length:    r.size.Size,
			BlockSize: r.size.BlockSize,
			WriteSize: 4,
			Erased:    0xff,
			Driver:    d,
		}
		if err := t.AddFlash(f); err != nil {
			glog.Warningf("%s: %s not registered: %s", dev.Name, r.name, err)
		}
	}
	t.AddCommands(commandGroup, d.commands())
	return d, nil
}

func regionUnlock(f *common.Flash) UnlockFlags {
	switch {
	case f.Start >= configBase:
		return UnlockConfig
	case f.Start >= spromBase:
		return UnlockSPROM
	case f.Start >= ldromBase:
		return UnlockLDROM
	}
	return UnlockAPROM
}

func (d *Driver) Erase(ctx context.Context, f *common.Flash, addr uint32, length int) error {
	if _, err := d.isp.Enable(ctx, regionUnlock(f)); err != nil {
		return errors.Annotatef(err, "failed to enable ISP")
	}
	out, err := d.isp.EraseRange(ctx, addr, length, f.BlockSize)
	if err != nil {
		return errors.Trace(err)
	}
	return checkOutcome(out, fmt.Sprintf("erase %d @ 0x%08x", length, addr))
}

func (d *Driver) Write(ctx context.Context, f *common.Flash, dest uint32, data []byte) error {
	if _, err := d.isp.Enable(ctx, regionUnlock(f)); err != nil {
		return errors.Annotatef(err, "failed to enable ISP")
	}
	out, err := d.isp.WriteWords(ctx, dest, data)
	if err != nil {
		return errors.Trace(err)
	}
	return checkOutcome(out, fmt.Sprintf("write %d @ 0x%08x", len(data), dest))
}

func (d *Driver) Read(ctx context.Context, f *common.Flash, addr uint32, length int) ([]byte, error) {
	if length%4 != 0 {
		return nil, errors.NotValidf("misaligned length %d", length)
	}
	if _, err := d.isp.Enable(ctx, UnlockNone); err != nil {
		return nil, errors.Annotatef(err, "failed to enable ISP")
	}
	words, out, err := d.isp.ReadWords(ctx, addr, length/4)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := checkOutcome(out, fmt.Sprintf("read %d @ 0x%08x", length, addr)); err != nil {
		return nil, err
	}
	res := make([]byte, length)
	for i, w := range words {
		binary.LittleEndian.PutUint32(res[i*4:], w)
	}
	return res, nil
}
