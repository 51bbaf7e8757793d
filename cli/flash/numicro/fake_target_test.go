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
	"time"
)

type ispOp struct {
	op   Opcode
	addr uint32
	data uint32
}

type idKey struct {
	op   Opcode
	addr uint32
}

// fakeTarget is a register file with a minimal model of the M032 FMC.
type fakeTarget struct {
	regs map[uint32]uint32
	// Flash contents by word address. Missing words read as erased.
	flash map[uint32]uint32
	// Values returned by READ_UID and READ_CID.
	ids map[idKey]uint32

	// Number of ISPTRG reads that still see ISPGO after each trigger.
	busy int
	// ISPGO never clears.
	stuck bool
	// Commands that raise ISPFF.
	faultOn map[Opcode]bool
	// REGLCTL ignores the key sequence.
	lockedRegs bool
	// ISPCTL writes are ignored.
	ctlReadOnly bool

	busyLeft int
	keys     []uint32
	ops      []ispOp
	reads    []uint32
	writes   []uint32
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		regs:    map[uint32]uint32{},
		flash:   map[uint32]uint32{},
		ids:     map[idKey]uint32{},
		faultOn: map[Opcode]bool{},
	}
}

func (f *fakeTarget) ReadTargetReg(ctx context.Context, addr uint32) (uint32, error) {
	f.reads = append(f.reads, addr)
	if addr == regISPTRG {
		if f.stuck {
			return isptrgISPGO, nil
		}
		if f.busyLeft > 0 {
			f.busyLeft--
			return isptrgISPGO, nil
		}
		return 0, nil
	}
	return f.regs[addr], nil
}

func (f *fakeTarget) WriteTargetReg(ctx context.Context, addr uint32, value uint32) error {
	f.writes = append(f.writes, addr, value)
	switch addr {
	case regREGLCTL:
		f.keys = append(f.keys, value)
		if n := len(f.keys); n >= 3 && !f.lockedRegs &&
			f.keys[n-3] == regUnlockKeys[0] && f.keys[n-2] == regUnlockKeys[1] && f.keys[n-1] == regUnlockKeys[2] {
			f.regs[regREGLCTL] = 1
		}
	case regISPCTL:
		if f.ctlReadOnly {
			return nil
		}
		ctl := value &^ ispctlISPFF
		if value&ispctlISPFF == 0 {
			ctl |= f.regs[regISPCTL] & ispctlISPFF
		}
		f.regs[regISPCTL] = ctl
	case regISPTRG:
		if value&isptrgISPGO != 0 {
			f.trigger()
		}
	default:
		f.regs[addr] = value
	}
	return nil
}

func (f *fakeTarget) trigger() {
	op := Opcode(f.regs[regISPCMD])
	addr := f.regs[regISPADDR]
	o := ispOp{op: op, addr: addr}
	if op == OpWrite {
		o.data = f.regs[regISPDAT]
	}
	f.ops = append(f.ops, o)
	f.busyLeft = f.busy
	if f.faultOn[op] {
		f.regs[regISPCTL] |= ispctlISPFF
		return
	}
	switch op {
	case OpRead:
		v, ok := f.flash[addr]
		if !ok {
			v = 0xffffffff
		}
		f.regs[regISPDAT] = v
	case OpReadUID, OpReadCID:
		f.regs[regISPDAT] = f.ids[idKey{op, addr}]
	case OpWrite:
		f.flash[addr] = f.regs[regISPDAT]
	case OpErase:
		base := addr &^ (pageSize - 1)
		for a := base; a < base+pageSize; a += 4 {
			delete(f.flash, a)
		}
	case OpChipErase:
		f.flash = map[uint32]uint32{}
	}
}

// opsOf returns the logged commands with the given opcode.
func (f *fakeTarget) opsOf(op Opcode) []ispOp {
	var res []ispOp
	for _, o := range f.ops {
		if o.op == op {
			res = append(res, o)
		}
	}
	return res
}

func (f *fakeTarget) readCount(reg uint32) int {
	n := 0
	for _, r := range f.reads {
		if r == reg {
			n++
		}
	}
	return n
}

type recordingDelayer struct {
	delays []time.Duration
}

func (d *recordingDelayer) Delay(ctx context.Context, dur time.Duration) error {
	d.delays = append(d.delays, dur)
	return nil
}

func (d *recordingDelayer) count(dur time.Duration) int {
	n := 0
	for _, x := range d.delays {
		if x == dur {
			n++
		}
	}
	return n
}
