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

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// EraseRange erases length bytes at addr one block at a time.
// ISP must be enabled with the right update flags. In lenient mode every block
// is attempted and the worst outcome is returned.
func (isp *ISP) EraseRange(ctx context.Context, addr uint32, length, blockSize int) (Outcome, error) {
	if blockSize <= 0 {
		return OutcomeUnverified, errors.NotValidf("block size %d", blockSize)
	}
	if length <= 0 || length%blockSize != 0 {
		return OutcomeUnverified, errors.NotValidf("misaligned length %d (block size %d)", length, blockSize)
	}
	if addr%uint32(blockSize) != 0 {
		return OutcomeUnverified, errors.NotValidf("misaligned address 0x%08x (block size %d)", addr, blockSize)
	}
	out := OutcomeVerified
	for a, end := addr, addr+uint32(length); a < end; a += uint32(blockSize) {
		glog.V(2).Infof("Erasing @ 0x%08x", a)
		res, err := isp.Exec(ctx, OpErase, a, 0)
		out = out.worse(res.Outcome)
		if err != nil {
			return out, errors.Annotatef(err, "erase @ 0x%08x", a)
		}
		if err := isp.delayer.Delay(ctx, isp.cfg.EraseDelay); err != nil {
			return out, errors.Trace(err)
		}
	}
	return out, nil
}

// WriteWords programs data at addr, one little-endian word per command.
func (isp *ISP) WriteWords(ctx context.Context, addr uint32, data []byte) (Outcome, error) {
	if len(data)%4 != 0 {
		return OutcomeUnverified, errors.NotValidf("misaligned length %d", len(data))
	}
	if addr%4 != 0 {
		return OutcomeUnverified, errors.NotValidf("misaligned address 0x%08x", addr)
	}
	out := OutcomeVerified
	for i := 0; i < len(data); i += 4 {
		a := addr + uint32(i)
		w := binary.LittleEndian.Uint32(data[i:])
		res, err := isp.Exec(ctx, OpWrite, a, w)
		out = out.worse(res.Outcome)
		if err != nil {
			return out, errors.Annotatef(err, "write @ 0x%08x", a)
		}
		if err := isp.delayer.Delay(ctx, isp.cfg.WriteDelay); err != nil {
			return out, errors.Trace(err)
		}
	}
	return out, nil
}

// ReadWords reads n words starting at addr. Words whose read timed out are zero,
// the returned outcome tells whether any did.
func (isp *ISP) ReadWords(ctx context.Context, addr uint32, n int) ([]uint32, Outcome, error) {
	if addr%4 != 0 {
		return nil, OutcomeUnverified, errors.NotValidf("misaligned address 0x%08x", addr)
	}
	out := OutcomeVerified
	res := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		a := addr + uint32(i*4)
		r, err := isp.Exec(ctx, OpRead, a, 0)
		out = out.worse(r.Outcome)
		if err != nil {
			return nil, out, errors.Annotatef(err, "read @ 0x%08x", a)
		}
		res = append(res, r.Data)
	}
	return res, out, nil
}

// ChipErase wipes APROM, LDROM and SPROM with a single command.
// Nothing is read back afterwards.
func (isp *ISP) ChipErase(ctx context.Context) (Outcome, error) {
	if _, err := isp.Enable(ctx, UnlockAPROM|UnlockLDROM|UnlockSPROM); err != nil {
		return OutcomeUnverified, errors.Annotatef(err, "failed to enable ISP")
	}
	res, err := isp.Exec(ctx, OpChipErase, 0, 0)
	if err != nil {
		return res.Outcome, errors.Annotatef(err, "chip erase")
	}
	return res.Outcome, errors.Trace(isp.delayer.Delay(ctx, isp.cfg.ChipEraseSettle))
}

// checkOutcome turns a timed out step into an error, whatever the mode:
// the operation did not complete. Unverified steps are only logged.
func checkOutcome(out Outcome, what string) error {
	switch out {
	case OutcomeTimedOut:
		return errors.Timeoutf("%s", what)
	case OutcomeUnverified:
		glog.Warningf("%s: unverified", what)
	}
	return nil
}
