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

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flash/common"
)

// Outcome tells how much is known about a completed ISP step.
type Outcome int

const (
	// Verified: the controller reported completion and no fault.
	OutcomeVerified Outcome = iota
	// Unverified: the step went through but its effect was not confirmed,
	// e.g. a fault flag was raised and acknowledged, or nothing was read back.
	OutcomeUnverified
	// TimedOut: ISPGO never cleared within the poll budget.
	OutcomeTimedOut
)

// worse returns the less certain of the two outcomes.
func (o Outcome) worse(other Outcome) Outcome {
	if other > o {
		return other
	}
	return o
}

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeUnverified:
		return "unverified"
	case OutcomeTimedOut:
		return "timed out"
	}
	return "unknown"
}

// Result of a single ISP command.
type Result struct {
	// ISPDAT after a command that returns data. Zero otherwise, or when timed out.
	Data    uint32
	Outcome Outcome
	// The fault flag (ISPFF) was set after the command and has been cleared.
	Fault bool
}

// ISP issues commands to the flash memory controller of one target.
type ISP struct {
	mem     common.TargetMemReaderWriter
	delayer common.Delayer
	cfg     Config
}

func NewISP(mem common.TargetMemReaderWriter, delayer common.Delayer, opts ...Option) *ISP {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if delayer == nil {
		delayer = common.SleepDelayer
	}
	return &ISP{mem: mem, delayer: delayer, cfg: cfg}
}

func (isp *ISP) Config() Config {
	return isp.cfg
}

func (isp *ISP) read(ctx context.Context, reg uint32) (uint32, error) {
	v, err := isp.mem.ReadTargetReg(ctx, reg)
	if err != nil {
		return 0, errors.Annotatef(err, "failed to read 0x%08x", reg)
	}
	return v, nil
}

func (isp *ISP) write(ctx context.Context, reg, value uint32) error {
	return errors.Annotatef(isp.mem.WriteTargetReg(ctx, reg, value), "failed to write 0x%08x", reg)
}

// waitIdle polls ISPTRG until ISPGO clears. Returns false if it never did.
func (isp *ISP) waitIdle(ctx context.Context) (bool, error) {
	for polls := 0; ; polls++ {
		trg, err := isp.read(ctx, regISPTRG)
		if err != nil {
			return false, errors.Trace(err)
		}
		if trg&isptrgISPGO == 0 {
			return true, nil
		}
		if polls >= isp.cfg.Poll.MaxPolls {
			return false, nil
		}
		if err := isp.delayer.Delay(ctx, isp.cfg.Poll.Interval); err != nil {
			return false, errors.Trace(err)
		}
	}
}

// Exec runs one ISP command. data is only used by OpWrite.
//
// Transport errors are always returned. A timeout or a controller fault is an
// error in strict mode; otherwise it is logged and reflected in the Result.
// After a timeout neither the fault flag nor ISPDAT are touched.
func (isp *ISP) Exec(ctx context.Context, op Opcode, addr, data uint32) (Result, error) {
	glog.V(4).Infof("ISP %s @ 0x%08x (0x%08x)", op, addr, data)
	if err := isp.write(ctx, regISPCMD, uint32(op)); err != nil {
		return Result{}, errors.Trace(err)
	}
	if err := isp.write(ctx, regISPADDR, addr); err != nil {
		return Result{}, errors.Trace(err)
	}
	if op == OpWrite {
		if err := isp.write(ctx, regISPDAT, data); err != nil {
			return Result{}, errors.Trace(err)
		}
	}
	if err := isp.write(ctx, regISPTRG, isptrgISPGO); err != nil {
		return Result{}, errors.Trace(err)
	}
	idle, err := isp.waitIdle(ctx)
	if err != nil {
		return Result{}, errors.Trace(err)
	}
	if !idle {
		if isp.cfg.Strict {
			return Result{Outcome: OutcomeTimedOut}, errors.Timeoutf("ISP %s @ 0x%08x", op, addr)
		}
		glog.Warningf("ISP %s @ 0x%08x timed out", op, addr)
		return Result{Outcome: OutcomeTimedOut}, nil
	}
	res := Result{Outcome: OutcomeVerified}
	ctl, err := isp.read(ctx, regISPCTL)
	if err != nil {
		return res, errors.Trace(err)
	}
	if ctl&ispctlISPFF != 0 {
		// ISPFF is cleared by writing 1, i.e. writing back what we read.
		if err := isp.write(ctx, regISPCTL, ctl); err != nil {
			return res, errors.Trace(err)
		}
		res.Fault = true
		res.Outcome = OutcomeUnverified
		if isp.cfg.Strict {
			return res, errors.Errorf("ISP %s @ 0x%08x failed (ISPCTL 0x%08x)", op, addr, ctl)
		}
		glog.Warningf("ISP %s @ 0x%08x: fault flag set (ISPCTL 0x%08x), cleared", op, addr, ctl)
	}
	if op.returnsData() {
		if res.Data, err = isp.read(ctx, regISPDAT); err != nil {
			return res, errors.Trace(err)
		}
	}
	glog.V(4).Infof("ISP %s @ 0x%08x: %s 0x%08x", op, addr, res.Outcome, res.Data)
	return res, nil
}
