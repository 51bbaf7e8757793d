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
	"fmt"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flash/common"
)

// Doc: ARMv6-M Architecture Reference Manual, C1.6

const (
	regCPUID    uint32 = 0xE000ED00
	regAIRCR    uint32 = 0xE000ED0C
	regAIRCRKey uint32 = 0x05FA0000

	regDHCSR    uint32 = 0xE000EDF0
	regDHCSRKey uint32 = 0xA05F0000
	regDEMCR    uint32 = 0xE000EDFC
	regPID0     uint32 = 0xE000EFE0
)

const (
	dhcsrCDebugEn = 1 << 0
	dhcsrCHalt    = 1 << 1
	dhcsrSHalt    = 1 << 17

	demcrVCCoreReset = 1 << 0
	aircrSysResetReq = 1 << 2
)

// Part numbers, CPUID[15:4].
const (
	PartCortexM0     = 0xc20
	PartCortexM0Plus = 0xc60
	PartCortexM1     = 0xc21
	PartCortexM3     = 0xc23
	PartCortexM4     = 0xc24
	PartCortexM7     = 0xc27
)

// PartNo extracts the part number from a CPUID value.
func PartNo(cpuid uint32) uint32 {
	return (cpuid >> 4) & 0xfff
}

func TargetName(cpuid, pid0 uint32) string {
	glog.V(1).Infof("CPUID: 0x%08x, PID0: 0x%08x", cpuid, pid0)
	vendor := ""
	switch cpuid >> 24 {
	case 0x41:
		vendor = "ARM"
	}
	patch := cpuid & 0xf
	rev := (cpuid >> 20) & 0xf
	part := ""
	switch PartNo(cpuid) {
	case PartCortexM0:
		part = "Cortex-M0"
	case PartCortexM0Plus:
		part = "Cortex-M0+"
	case PartCortexM1:
		part = "Cortex-M1"
	case PartCortexM3:
		part = "Cortex-M3"
	case PartCortexM4:
		part = "Cortex-M4"
	case PartCortexM7:
		part = "Cortex-M7"
	default:
		part = fmt.Sprintf("0x%03x", PartNo(cpuid))
	}
	fpu := ""
	if pid0 == 0xc {
		fpu = "F"
	}
	return fmt.Sprintf("%s %s%s r%dp%d", vendor, part, fpu, rev, patch)
}

func ReadCPUID(ctx context.Context, tmrw common.TargetMemReaderWriter) (uint32, error) {
	cpuid, err := tmrw.ReadTargetReg(ctx, regCPUID)
	if err != nil {
		return 0, errors.Annotatef(err, "failed to get CPUID")
	}
	return cpuid, nil
}

func GetTargetName(ctx context.Context, tmrw common.TargetMemReaderWriter) (string, error) {
	cpuid, err := ReadCPUID(ctx, tmrw)
	if err != nil {
		return "", errors.Trace(err)
	}
	pid0, err := tmrw.ReadTargetReg(ctx, regPID0)
	if err != nil {
		return "", errors.Annotatef(err, "failed to get PID0")
	}
	return TargetName(cpuid, pid0), nil
}
