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
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flash/common"
	"github.com/mongoose-os/nuisp/cli/ourutil"
	"github.com/mongoose-os/nuisp/common/multierror"
)

// Words per line of memory dumps.
const dumpWordsPerLine = 4

func (d *Driver) commands() []common.Command {
	return []common.Command{
		common.NewCommand("erase_aprom", "Erase APROM", d.cmdEraseAPROM),
		common.NewCommand("erase_ldrom", "Erase LDROM", d.cmdEraseLDROM),
		common.NewCommand("erase_sprom", "Erase SPROM", d.cmdEraseSPROM),
		common.NewCommand("erase_mass", "Erase APROM and LDROM", d.cmdEraseMass),
		common.NewCommand("erase_chip", "Erase chip via undocumented command", d.cmdEraseChip),
		common.NewCommand("set_config0", "Set CONFIG0 register (not implemented)", notImplemented("set_config0")),
		common.NewCommand("set_config1", "Set CONFIG1 register (not implemented)", notImplemented("set_config1")),
		common.NewCommand("set_config2", "Set CONFIG2 register (not implemented)", notImplemented("set_config2")),
		common.NewCommand("read_configs", "Read CONFIG registers", d.cmdReadConfigs),
		common.NewCommand("read_uid", "Read UID", d.cmdReadUID),
		common.NewCommand("read_cid", "Read CID", d.cmdReadCID),
		common.NewCommand("read_aprom_page1", "Dump the first two APROM pages", d.cmdReadAPROMPages),
	}
}

// TODO: implement CONFIG writes (erase the config page, then write back all three words).
func notImplemented(name string) func(ctx context.Context, t *common.Target, args []string) error {
	return func(ctx context.Context, t *common.Target, args []string) error {
		return errors.NotImplementedf(name)
	}
}

func (d *Driver) eraseArea(ctx context.Context, name string, base uint32, rs RegionSize, flags UnlockFlags) error {
	if _, err := d.isp.Enable(ctx, flags); err != nil {
		return errors.Annotatef(err, "failed to enable ISP")
	}
	ourutil.Reportf("Erasing %s (%d @ 0x%08x)...", name, rs.Size, base)
	out, err := d.isp.EraseRange(ctx, base, rs.Size, rs.BlockSize)
	if err != nil {
		return errors.Annotatef(err, "failed to erase %s", name)
	}
	switch out {
	case OutcomeTimedOut:
		ourutil.Reportf("Erasing %s timed out", name)
		return errors.Timeoutf("erasing %s", name)
	case OutcomeUnverified:
		ourutil.Reportf("Erasing %s done (unverified)", name)
	default:
		ourutil.Reportf("Erasing %s done", name)
	}
	return nil
}

func (d *Driver) cmdEraseAPROM(ctx context.Context, t *common.Target, args []string) error {
	return d.eraseArea(ctx, "APROM", apromBase, d.dev.APROM, UnlockAPROM)
}

func (d *Driver) cmdEraseLDROM(ctx context.Context, t *common.Target, args []string) error {
	return d.eraseArea(ctx, "LDROM", ldromBase, d.dev.LDROM, UnlockLDROM)
}

func (d *Driver) cmdEraseSPROM(ctx context.Context, t *common.Target, args []string) error {
	rs := d.dev.SPROM
	if rs.Size == 0 {
		rs = RegionSize{Size: defaultSPROMSize, BlockSize: pageSize}
	}
	return d.eraseArea(ctx, "SPROM", spromBase, rs, UnlockSPROM)
}

// cmdEraseMass erases APROM and LDROM. LDROM is attempted even if APROM fails.
func (d *Driver) cmdEraseMass(ctx context.Context, t *common.Target, args []string) error {
	var errs error
	if err := d.cmdEraseAPROM(ctx, t, args); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := d.cmdEraseLDROM(ctx, t, args); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs
}

func (d *Driver) cmdEraseChip(ctx context.Context, t *common.Target, args []string) error {
	out, err := d.isp.ChipErase(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	switch out {
	case OutcomeTimedOut:
		ourutil.Reportf("Erasing chip timed out")
		return errors.Timeoutf("chip erase")
	case OutcomeUnverified:
		ourutil.Reportf("Erasing chip done (unverified)")
	default:
		ourutil.Reportf("Erasing chip done")
	}
	return nil
}

// ReadConfig reads CONFIG0..2. A timed out read is an error in either mode,
// the words were never fetched.
func (d *Driver) ReadConfig(ctx context.Context) (UserConfig, Outcome, error) {
	var uc UserConfig
	if _, err := d.isp.Enable(ctx, UnlockNone); err != nil {
		return uc, OutcomeUnverified, errors.Annotatef(err, "failed to enable ISP")
	}
	words, out, err := d.isp.ReadWords(ctx, config0, 3)
	if err != nil {
		return uc, out, errors.Trace(err)
	}
	if out == OutcomeTimedOut {
		return uc, out, errors.Timeoutf("reading CONFIG")
	}
	uc.Config0, uc.Config1, uc.Config2 = words[0], words[1], words[2]
	return uc, out, nil
}

func (d *Driver) cmdReadConfigs(ctx context.Context, t *common.Target, args []string) error {
	uc, out, err := d.ReadConfig(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("CONFIG0: 0x%08x", uc.Config0)
	ourutil.Reportf("CONFIG1: 0x%08x", uc.Config1)
	ourutil.Reportf("CONFIG2: 0x%08x", uc.Config2)
	if out != OutcomeVerified {
		ourutil.Reportf("CONFIG read %s, boot source and lock state unknown", out)
		return nil
	}
	if uc.BootSource() == BootFromLDROM {
		ourutil.Reportf("CBS=0: boot from LDROM")
	} else {
		ourutil.Reportf("CBS=1: boot from APROM")
	}
	if uc.Locked() {
		ourutil.Reportf("Flash is secure locked! To unlock, run erase_chip.")
	} else {
		ourutil.Reportf("Flash is not locked")
	}
	ctl, err := d.isp.read(ctx, regISPCTL)
	if err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("ISPCTL reports: boot from %s", ispctlBootSource(ctl))
	return nil
}

// readIDWords issues op at offsets 0, 4, 8...
func (d *Driver) readIDWords(ctx context.Context, op Opcode, n int) ([]uint32, Outcome, error) {
	if _, err := d.isp.Enable(ctx, UnlockNone); err != nil {
		return nil, OutcomeUnverified, errors.Annotatef(err, "failed to enable ISP")
	}
	out := OutcomeVerified
	var res []uint32
	for i := 0; i < n; i++ {
		r, err := d.isp.Exec(ctx, op, uint32(i*4), 0)
		out = out.worse(r.Outcome)
		if err != nil {
			return nil, out, errors.Annotatef(err, "%s %d", op, i)
		}
		res = append(res, r.Data)
	}
	if out == OutcomeTimedOut {
		return nil, out, errors.Timeoutf("%s", op)
	}
	return res, out, nil
}

// ReadUID returns the three words of the unique ID.
func (d *Driver) ReadUID(ctx context.Context) ([]uint32, Outcome, error) {
	return d.readIDWords(ctx, OpReadUID, 3)
}

// ReadCID returns the four words of the company ID area.
func (d *Driver) ReadCID(ctx context.Context) ([]uint32, Outcome, error) {
	return d.readIDWords(ctx, OpReadCID, 4)
}

func reportWords(prefix string, words []uint32, out Outcome) {
	for i, w := range words {
		ourutil.Reportf("%s%d: 0x%08x", prefix, i, w)
	}
	if out != OutcomeVerified {
		ourutil.Reportf("%s read %s", prefix, out)
	}
}

func (d *Driver) cmdReadUID(ctx context.Context, t *common.Target, args []string) error {
	uid, out, err := d.ReadUID(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	reportWords("UID", uid, out)
	return nil
}

func (d *Driver) cmdReadCID(ctx context.Context, t *common.Target, args []string) error {
	cid, out, err := d.ReadCID(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	reportWords("CID", cid, out)
	return nil
}

func (d *Driver) cmdReadAPROMPages(ctx context.Context, t *common.Target, args []string) error {
	if _, err := d.isp.Enable(ctx, UnlockNone); err != nil {
		return errors.Annotatef(err, "failed to enable ISP")
	}
	bs := d.dev.APROM.BlockSize
	for page := 0; page < 2; page++ {
		addr := apromBase + uint32(page*bs)
		words, out, err := d.isp.ReadWords(ctx, addr, bs/4)
		if err != nil {
			return errors.Trace(err)
		}
		if out == OutcomeTimedOut {
			return errors.Timeoutf("reading APROM page %d", page+1)
		}
		ourutil.Reportf("APROM page %d:\n%s", page+1, formatWords(addr, words))
		if out != OutcomeVerified {
			ourutil.Reportf("APROM page %d read %s", page+1, out)
		}
	}
	return nil
}

func formatWords(addr uint32, words []uint32) string {
	var sb strings.Builder
	for i, w := range words {
		if i%dumpWordsPerLine == 0 {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "%08x:", addr+uint32(i*4))
		}
		fmt.Fprintf(&sb, " %08x", w)
	}
	return sb.String()
}
