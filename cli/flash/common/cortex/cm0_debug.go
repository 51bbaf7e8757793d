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
package cortex

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flash/common"
)

type CortexDebug interface {
	common.Core

	Init(ctx context.Context) error
}

const (
	haltPollInterval = 10 * time.Millisecond
	haltPollMax      = 100
)

func NewCM0Debug(tmrw common.TargetMemReaderWriter, delayer common.Delayer) CortexDebug {
	return &cm0Debug{tmrw: tmrw, delayer: delayer}
}

type cm0Debug struct {
	tmrw    common.TargetMemReaderWriter
	delayer common.Delayer
}

func (cm0d *cm0Debug) Init(ctx context.Context) error {
	cpuid, err := ReadCPUID(ctx, cm0d.tmrw)
	if err != nil {
		return errors.Trace(err)
	}
	switch PartNo(cpuid) {
	case PartCortexM0, PartCortexM0Plus:
	default:
		return errors.Errorf("target is not a Cortex-M0 (CPUID 0x%08x)", cpuid)
	}
	return nil
}

func (cm0d *cm0Debug) reset(ctx context.Context, dhcsr, demcr uint32) error {
	if err := cm0d.tmrw.WriteTargetReg(ctx, regDHCSR, dhcsr); err != nil {
		return errors.Annotatef(err, "failed to set DHCSR")
	}
	if err := cm0d.tmrw.WriteTargetReg(ctx, regDEMCR, demcr); err != nil {
		return errors.Annotatef(err, "failed to set DEMCR")
	}
	// The core may drop off the bus while resetting, the write is not always acked.
	if err := cm0d.tmrw.WriteTargetReg(ctx, regAIRCR, regAIRCRKey|aircrSysResetReq); err != nil {
		glog.V(1).Infof("AIRCR write: %s", err)
	}
	return nil
}

func (cm0d *cm0Debug) Halt(ctx context.Context) error {
	if err := cm0d.tmrw.WriteTargetReg(ctx, regDHCSR, regDHCSRKey|dhcsrCHalt|dhcsrCDebugEn); err != nil {
		return errors.Annotatef(err, "failed to set DHCSR")
	}
	return errors.Trace(cm0d.WaitHalt(ctx))
}

func (cm0d *cm0Debug) ResetHalt(ctx context.Context) error {
	// Per RM C1.4.1: set DHCSR.C_DEBUGEN, DEMCR.VC_CORERESET and reset.
	if err := cm0d.reset(ctx, regDHCSRKey|dhcsrCDebugEn, demcrVCCoreReset); err != nil {
		return errors.Annotatef(err, "failed to reset the core")
	}
	return errors.Trace(cm0d.WaitHalt(ctx))
}

func (cm0d *cm0Debug) ResetRun(ctx context.Context) error {
	// Reset with debug disabled.
	return cm0d.reset(ctx, regDHCSRKey, 0)
}

func (cm0d *cm0Debug) WaitHalt(ctx context.Context) error {
	for i := 0; i < haltPollMax; i++ {
		dhcsr, err := cm0d.tmrw.ReadTargetReg(ctx, regDHCSR)
		if err != nil {
			glog.V(3).Infof("WaitHalt: %s", err)
		} else {
			glog.V(3).Infof("WaitHalt DHCSR 0x%08x", dhcsr)
			if dhcsr&dhcsrSHalt != 0 {
				return nil
			}
		}
		if err := cm0d.delayer.Delay(ctx, haltPollInterval); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Timeoutf("waiting for the core to halt")
}
