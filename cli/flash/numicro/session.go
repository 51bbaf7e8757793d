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
)

// UnlockRegisters writes the key sequence to REGLCTL and reports whether
// the protected registers are now writable.
func (isp *ISP) UnlockRegisters(ctx context.Context) (bool, error) {
	for _, key := range regUnlockKeys {
		if err := isp.write(ctx, regREGLCTL, key); err != nil {
			return false, errors.Trace(err)
		}
	}
	v, err := isp.read(ctx, regREGLCTL)
	if err != nil {
		return false, errors.Trace(err)
	}
	if v == 0 {
		glog.Infof("Registers not unlocked!")
		return false, nil
	}
	glog.V(1).Infof("Registers unlocked")
	return true, nil
}

// Enable unlocks the protected registers, turns on the ISP clock and enables
// ISP with the given update flags. Bits already set are left alone, nothing is
// ever disabled, so it is fine to call before every operation.
func (isp *ISP) Enable(ctx context.Context, flags UnlockFlags) (Outcome, error) {
	unlocked, err := isp.UnlockRegisters(ctx)
	if err != nil {
		return OutcomeUnverified, errors.Annotatef(err, "failed to unlock registers")
	}
	if !unlocked && isp.cfg.Strict {
		return OutcomeUnverified, errors.Errorf("registers are still locked")
	}

	clk, err := isp.read(ctx, regAHBCLK)
	if err != nil {
		return OutcomeUnverified, errors.Trace(err)
	}
	if err := isp.write(ctx, regAHBCLK, clk|ahbclkISPEn); err != nil {
		return OutcomeUnverified, errors.Trace(err)
	}
	if err := isp.delayer.Delay(ctx, isp.cfg.EnableSettle); err != nil {
		return OutcomeUnverified, errors.Trace(err)
	}

	ctl, err := isp.read(ctx, regISPCTL)
	if err != nil {
		return OutcomeUnverified, errors.Trace(err)
	}
	want := uint32(ispctlISPEN) | uint32(flags)
	if err := isp.write(ctx, regISPCTL, ctl|ispctlISPFF|want); err != nil {
		return OutcomeUnverified, errors.Trace(err)
	}
	if err := isp.delayer.Delay(ctx, isp.cfg.EnableSettle); err != nil {
		return OutcomeUnverified, errors.Trace(err)
	}

	if !isp.cfg.Strict {
		glog.V(1).Infof("ISP enabled (flags 0x%02x)", uint32(flags))
		return OutcomeUnverified, nil
	}
	ctl, err = isp.read(ctx, regISPCTL)
	if err != nil {
		return OutcomeUnverified, errors.Trace(err)
	}
	if ctl&want != want {
		return OutcomeUnverified, errors.Errorf("ISP enable failed (ISPCTL 0x%08x, want 0x%08x set)", ctl, want)
	}
	glog.V(1).Infof("ISP enabled (flags 0x%02x), ISPCTL 0x%08x", uint32(flags), ctl)
	return OutcomeVerified, nil
}
