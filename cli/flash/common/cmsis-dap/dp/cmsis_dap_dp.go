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
package dp

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flash/common/cmsis-dap/dap"
)

type DPReg uint8

const (
	DPIDR      DPReg = 0x00
	DPABORT    DPReg = 0x00 // Write-only, shares the address with DPIDR.
	DPCTRLSTAT DPReg = 0x04
	DPSELECT   DPReg = 0x08
	DPRDBUFF   DPReg = 0x0c
)

const (
	ctrlCSYSPWRUPACK = 1 << 31
	ctrlCSYSPWRUPREQ = 1 << 30
	ctrlCDBGPWRUPACK = 1 << 29
	ctrlCDBGPWRUPREQ = 1 << 28

	// STKCMPCLR | STKERRCLR | WDERRCLR | ORUNERRCLR
	abortClearErrors = 0x1e
)

// Upper bound on CTRL/STAT reads while waiting for power-up acks.
const maxPowerUpPolls = 100

type DPClient interface {
	Init(ctx context.Context) error
	GetIDR(ctx context.Context) (DPIDRValue, error)
	SetDbgPower(ctx context.Context, dbg, sys bool) error
	ReadDPReg(ctx context.Context, reg DPReg) (uint32, error)
	WriteDPReg(ctx context.Context, reg DPReg, value uint32) error
	ReadAPReg(ctx context.Context, apSel, apReg uint8) (uint32, error)
	WriteAPReg(ctx context.Context, apSel, apReg uint8, value uint32) error
}

func NewDPClient(dapc dap.DAPClient) DPClient {
	return &dpClient{dapc: dapc, selectValue: 0xffffffff}
}

type dpClient struct {
	dapc dap.DAPClient

	// Last value written to DPSELECT, all ones when unknown.
	selectValue uint32
}

func (dpc *dpClient) readReg(ctx context.Context, reg uint8, ap bool) (uint32, error) {
	_, data, err := dpc.dapc.Transfer(ctx, 0, []dap.TransferRequest{
		{Op: dap.OpRead, AP: ap, Reg: reg},
	})
	if err != nil {
		return 0, errors.Annotatef(err, "failed to read reg 0x%x (ap %t)", reg, ap)
	}
	if len(data) != 1 {
		return 0, errors.Errorf("no data for reg 0x%x", reg)
	}
	return data[0], nil
}

func (dpc *dpClient) writeReg(ctx context.Context, reg uint8, ap bool, value uint32) error {
	_, _, err := dpc.dapc.Transfer(ctx, 0, []dap.TransferRequest{
		{Op: dap.OpWrite, AP: ap, Reg: reg, Data: value},
	})
	return errors.Annotatef(err, "failed to write reg 0x%x (ap %t)", reg, ap)
}

func (dpc *dpClient) ReadDPReg(ctx context.Context, reg DPReg) (uint32, error) {
	value, err := dpc.readReg(ctx, uint8(reg), false /* ap */)
	glog.V(4).Infof("%s == 0x%08x", reg, value)
	return value, errors.Trace(err)
}

func (dpc *dpClient) WriteDPReg(ctx context.Context, reg DPReg, value uint32) error {
	glog.V(4).Infof("%s = 0x%08x", reg, value)
	return errors.Trace(dpc.writeReg(ctx, uint8(reg), false /* ap */, value))
}

func (dpc *dpClient) Init(ctx context.Context) error {
	if _, err := dpc.GetIDR(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := dpc.WriteDPReg(ctx, DPABORT, abortClearErrors); err != nil {
		return errors.Annotatef(err, "failed to clear errors")
	}
	if err := dpc.WriteDPReg(ctx, DPSELECT, 0); err != nil {
		return errors.Trace(err)
	}
	dpc.selectValue = 0
	return errors.Trace(dpc.SetDbgPower(ctx, true, true))
}

func (dpc *dpClient) GetIDR(ctx context.Context) (DPIDRValue, error) {
	v, err := dpc.ReadDPReg(ctx, DPIDR)
	if err != nil {
		return 0, errors.Annotatef(err, "failed to read DPIDR")
	}
	return DPIDRValue(v), nil
}

func (dpc *dpClient) SetDbgPower(ctx context.Context, dbg, sys bool) error {
	var reqMask, ackMask uint32
	if dbg {
		reqMask |= ctrlCDBGPWRUPREQ
		ackMask |= ctrlCDBGPWRUPACK
	}
	if sys {
		reqMask |= ctrlCSYSPWRUPREQ
		ackMask |= ctrlCSYSPWRUPACK
	}
	for i := 0; i < maxPowerUpPolls; i++ {
		statValue, err := dpc.ReadDPReg(ctx, DPCTRLSTAT)
		if err != nil {
			return errors.Annotatef(err, "failed to read DPCTRLSTAT")
		}
		if statValue&0xf0000000 == (reqMask | ackMask) {
			return nil
		}
		ctrlValue := (statValue & 0x07ffffff) | reqMask
		if err := dpc.WriteDPReg(ctx, DPCTRLSTAT, ctrlValue); err != nil {
			return errors.Annotatef(err, "failed to write DPCTRLSTAT")
		}
	}
	return errors.Timeoutf("debug power-up")
}

func (dpc *dpClient) selectAP(ctx context.Context, apSel, apBank uint8) error {
	sv := (uint32(apSel) << 24) | ((uint32(apBank) & 0xf) << 4)
	if sv == dpc.selectValue {
		return nil
	}
	if err := dpc.WriteDPReg(ctx, DPSELECT, sv); err != nil {
		return errors.Annotatef(err, "failed to select AP %d bank %d", apSel, apBank)
	}
	dpc.selectValue = sv
	return nil
}

func (dpc *dpClient) ReadAPReg(ctx context.Context, apSel, apReg uint8) (uint32, error) {
	if err := dpc.selectAP(ctx, apSel, apReg/16); err != nil {
		return 0, errors.Trace(err)
	}
	// The read itself is posted, its value arrives with the next transfer;
	// CMSIS-DAP firmware takes care of RDBUFF for us.
	return dpc.readReg(ctx, apReg%16, true /* ap */)
}

func (dpc *dpClient) WriteAPReg(ctx context.Context, apSel, apReg uint8, value uint32) error {
	if err := dpc.selectAP(ctx, apSel, apReg/16); err != nil {
		return errors.Trace(err)
	}
	return dpc.writeReg(ctx, apReg%16, true /* ap */, value)
}

type DPIDRValue uint32

type DPDesigner uint16

func (v DPIDRValue) Designer() DPDesigner {
	return DPDesigner((v >> 1) & 0x7ff)
}

func (v DPIDRValue) Version() uint8 {
	return uint8((v >> 12) & 0xf)
}

func (v DPIDRValue) Minimal() bool {
	return (v>>16)&1 != 0
}

func (v DPIDRValue) PartNumber() uint8 {
	return uint8(v >> 20)
}

func (v DPIDRValue) Revision() uint8 {
	return uint8((v >> 28) & 0xf)
}

func (v DPDesigner) String() string {
	if v == 0x23b {
		return "ARM"
	}
	return fmt.Sprintf("0x%03x", uint16(v))
}

func (r DPReg) String() string {
	switch r {
	case DPIDR:
		return "DPIDR"
	case DPCTRLSTAT:
		return "DPCTRLSTAT"
	case DPSELECT:
		return "DPSELECT"
	case DPRDBUFF:
		return "DPRDBUFF"
	}
	return fmt.Sprintf("0x%x", uint8(r))
}
