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

import "fmt"

// Memory map.
const (
	apromBase  uint32 = 0x00000000
	ldromBase  uint32 = 0x00100000
	spromBase  uint32 = 0x00200000
	configBase uint32 = 0x00300000
	ramBase    uint32 = 0x20000000

	config0 = configBase
	config1 = configBase + 4
	config2 = configBase + 8
)

// System and FMC registers.
const (
	regChipID  uint32 = 0x40000000
	regREGLCTL uint32 = 0x40000100
	regAHBCLK  uint32 = 0x40000204

	regISPCTL  uint32 = 0x4000C000
	regISPADDR uint32 = 0x4000C004
	regISPDAT  uint32 = 0x4000C008
	regISPCMD  uint32 = 0x4000C00C
	regISPTRG  uint32 = 0x4000C010
)

const (
	ahbclkISPEn  = 1 << 2
	ahbclkSRAMEn = 1 << 4
	ahbclkTickEn = 1 << 5
)

const (
	ispctlISPEN  = 1 << 0
	ispctlBS     = 1 << 1
	ispctlSPUEN  = 1 << 2
	ispctlAPUEN  = 1 << 3
	ispctlCFGUEN = 1 << 4
	ispctlLDUEN  = 1 << 5
	ispctlISPFF  = 1 << 6
)

const isptrgISPGO = 1 << 0

// Register unlock sequence, written to REGLCTL in this order.
var regUnlockKeys = [...]uint32{0x59, 0x16, 0x88}

// UnlockFlags are ISPCTL bits that allow updates of a flash area.
type UnlockFlags uint32

const (
	UnlockNone   UnlockFlags = 0
	UnlockSPROM  UnlockFlags = ispctlSPUEN
	UnlockAPROM  UnlockFlags = ispctlAPUEN
	UnlockConfig UnlockFlags = ispctlCFGUEN
	UnlockLDROM  UnlockFlags = ispctlLDUEN
)

// Opcode is an ISP command.
type Opcode uint32

const (
	OpRead    Opcode = 0x00
	OpReadUID Opcode = 0x04
	OpReadCID Opcode = 0x0B
	OpWrite   Opcode = 0x21
	OpErase   Opcode = 0x22
	// Not in the reference manual. Erases APROM, LDROM, SPROM and CONFIG, clearing the lock.
	OpChipErase Opcode = 0x26
	OpVecMap    Opcode = 0x2E
)

// returnsData tells whether the command leaves a result in ISPDAT.
func (op Opcode) returnsData() bool {
	switch op {
	case OpRead, OpReadUID, OpReadCID:
		return true
	}
	return false
}

func (op Opcode) String() string {
	switch op {
	case OpRead:
		return "READ"
	case OpReadUID:
		return "READ_UID"
	case OpReadCID:
		return "READ_CID"
	case OpWrite:
		return "WRITE"
	case OpErase:
		return "ERASE"
	case OpChipErase:
		return "CHIPERASE"
	case OpVecMap:
		return "VECMAP"
	}
	return fmt.Sprintf("0x%02x", uint32(op))
}
