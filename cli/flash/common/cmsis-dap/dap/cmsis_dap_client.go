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
package dap

// This package implements (a subset of) the CMSIS-DAP v2 probe interface
// https://arm-software.github.io/CMSIS_5/DAP/html/group__DAP__Commands__gr.html

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

type cmd uint8

const (
	cmdInfo              cmd = 0x00
	cmdSetHostStatus     cmd = 0x01
	cmdConnect           cmd = 0x02
	cmdDisconnect        cmd = 0x03
	cmdTransferConfigure cmd = 0x04
	cmdTransfer          cmd = 0x05
	cmdResetTarget       cmd = 0x0a
	cmdSWJClock          cmd = 0x11
	cmdSWJSequence       cmd = 0x12
	cmdSWDConfigure      cmd = 0x13
)

const (
	infoVendorID        = 0x01
	infoProductID       = 0x02
	infoSerialNumber    = 0x03
	infoFirmwareVersion = 0x04
	infoPacketSize      = 0xff
)

// Number of times a transfer is retried when the target answers WAIT.
const transferWaitRetries = 5

type dapClient struct {
	l             Link
	maxPacketSize int
}

// NewClient talks CMSIS-DAP over the given link and negotiates the packet size.
func NewClient(ctx context.Context, l Link) (DAPClient, error) {
	dapc := &dapClient{
		l:             l,
		maxPacketSize: l.MaxPacketSize(),
	}
	resp, err := dapc.getInfo(ctx, infoPacketSize)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to get max packet size")
	}
	var rl uint8
	var mps uint16
	if binary.Read(resp, binary.LittleEndian, &rl) != nil || rl != 2 ||
		binary.Read(resp, binary.LittleEndian, &mps) != nil {
		return nil, errors.Errorf("invalid packet size response")
	}
	if mps > 0 {
		dapc.maxPacketSize = int(mps)
	}
	glog.V(2).Infof("max packet size: %d", dapc.maxPacketSize)
	return dapc, nil
}

func newCmd(cmd cmd) *bytes.Buffer {
	return bytes.NewBuffer([]uint8{uint8(cmd)})
}

func (dapc *dapClient) exec(ctx context.Context, args *bytes.Buffer) (*bytes.Buffer, error) {
	req := args.Bytes()
	glog.V(4).Infof(" => %s", hex.EncodeToString(req))
	if dapc.maxPacketSize > 0 && len(req) > dapc.maxPacketSize {
		return nil, errors.Errorf("packet too long (max %d, got %d)", dapc.maxPacketSize, len(req))
	}
	if err := dapc.l.WritePacket(ctx, req); err != nil {
		return nil, errors.Annotatef(err, "device write failed")
	}
	resp, err := dapc.l.ReadPacket(ctx)
	if err != nil {
		return nil, errors.Annotatef(err, "device read failed")
	}
	glog.V(4).Infof("<=  %s", hex.EncodeToString(resp))
	if len(resp) < 1 || resp[0] != req[0] {
		return nil, errors.Errorf("response to wrong command (want 0x%02x, got %s)", req[0], hex.EncodeToString(resp))
	}
	return bytes.NewBuffer(resp[1:]), nil
}

func (dapc *dapClient) execCheckStatus(ctx context.Context, args *bytes.Buffer) error {
	cmd := args.Bytes()[0]
	resp, err := dapc.exec(ctx, args)
	if err != nil {
		return errors.Trace(err)
	}
	if resp.Len() < 1 {
		return errors.Errorf("command 0x%02x: response is too short", cmd)
	}
	if status := resp.Bytes()[0]; status != 0 {
		return errors.Errorf("command 0x%02x returned error (0x%02x)", cmd, status)
	}
	return nil
}

func (dapc *dapClient) getInfo(ctx context.Context, info uint8) (*bytes.Buffer, error) {
	glog.V(3).Infof("GetInfo(%d)", info)
	args := newCmd(cmdInfo)
	args.WriteByte(info)
	resp, err := dapc.exec(ctx, args)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to get info 0x%02x", info)
	}
	return resp, nil
}

func (dapc *dapClient) getInfoString(ctx context.Context, info uint8) (string, error) {
	resp, err := dapc.getInfo(ctx, info)
	if err != nil {
		return "", errors.Trace(err)
	}
	sl, err := resp.ReadByte()
	if err != nil {
		return "", errors.Errorf("response is too short")
	}
	s := resp.Next(int(sl))
	return string(bytes.TrimRight(s, "\x00")), nil
}

func (dapc *dapClient) GetVendorID(ctx context.Context) (string, error) {
	return dapc.getInfoString(ctx, infoVendorID)
}

func (dapc *dapClient) GetProductID(ctx context.Context) (string, error) {
	return dapc.getInfoString(ctx, infoProductID)
}

func (dapc *dapClient) GetSerialNumber(ctx context.Context) (string, error) {
	return dapc.getInfoString(ctx, infoSerialNumber)
}

func (dapc *dapClient) GetFirmwareVersion(ctx context.Context) (string, error) {
	return dapc.getInfoString(ctx, infoFirmwareVersion)
}

func (dapc *dapClient) SetHostStatus(ctx context.Context, st StatusType, value bool) error {
	args := newCmd(cmdSetHostStatus)
	args.WriteByte(uint8(st))
	if value {
		args.WriteByte(1)
	} else {
		args.WriteByte(0)
	}
	return errors.Trace(dapc.execCheckStatus(ctx, args))
}

func (dapc *dapClient) Connect(ctx context.Context, mode ConnectMode) error {
	glog.V(3).Infof("Connect(%d)", mode)
	args := newCmd(cmdConnect)
	args.WriteByte(uint8(mode))
	resp, err := dapc.exec(ctx, args)
	if err != nil {
		return errors.Trace(err)
	}
	if resp.Len() < 1 || resp.Bytes()[0] == 0 {
		return errors.Errorf("connect error")
	}
	return nil
}

func (dapc *dapClient) Disconnect(ctx context.Context) error {
	return errors.Trace(dapc.execCheckStatus(ctx, newCmd(cmdDisconnect)))
}

func (dapc *dapClient) TransferConfigure(ctx context.Context, idleCycles uint8, waitRetry uint16, matchRetry uint16) error {
	glog.V(3).Infof("TransferConfigure(%d, %d, %d)", idleCycles, waitRetry, matchRetry)
	args := newCmd(cmdTransferConfigure)
	binary.Write(args, binary.LittleEndian, idleCycles)
	binary.Write(args, binary.LittleEndian, waitRetry)
	binary.Write(args, binary.LittleEndian, matchRetry)
	return errors.Trace(dapc.execCheckStatus(ctx, args))
}

func encodeTransferRequest(req TransferRequest) (uint8, bool, error) {
	if req.Reg&3 != 0 {
		return 0, false, errors.NotValidf("reg 0x%x", req.Reg)
	}
	treq := req.Reg & 0xc
	haveData := true
	if req.AP {
		treq |= 1 << 0
	}
	switch req.Op {
	case OpRead:
		treq |= 1 << 1
		haveData = false
	case OpReadMatch:
		treq |= 1<<1 | 1<<4
	case OpWrite:
	case OpWriteMatch:
		treq |= 1 << 5
	}
	return treq, haveData, nil
}

func (dapc *dapClient) doTransfer(ctx context.Context, dapIndex uint8, reqs []TransferRequest) (TransferStatus, []uint32, error) {
	args := newCmd(cmdTransfer)
	args.WriteByte(dapIndex)
	args.WriteByte(uint8(len(reqs)))
	for i, req := range reqs {
		treq, haveData, err := encodeTransferRequest(req)
		if err != nil {
			return 0, nil, errors.Annotatef(err, "treq %d", i)
		}
		args.WriteByte(treq)
		if haveData {
			binary.Write(args, binary.LittleEndian, req.Data)
		}
	}
	resp, err := dapc.exec(ctx, args)
	if err != nil {
		return 0, nil, errors.Trace(err)
	}
	var tc uint8
	var st TransferStatus
	if binary.Read(resp, binary.LittleEndian, &tc) != nil ||
		binary.Read(resp, binary.LittleEndian, &st) != nil {
		return st, nil, errors.Errorf("response is too short")
	}
	if !st.Ok() {
		return st, nil, errors.Errorf("transfer failed (tc %d/%d st 0x%02x)", tc, len(reqs), uint8(st))
	}
	if int(tc) != len(reqs) {
		return st, nil, errors.Errorf("not all transfers completed (%d/%d)", tc, len(reqs))
	}
	var data []uint32
	for _, req := range reqs {
		if req.Op != OpRead {
			continue
		}
		var d uint32
		if binary.Read(resp, binary.LittleEndian, &d) != nil {
			return st, nil, errors.Errorf("response is too short")
		}
		data = append(data, d)
	}
	return st, data, nil
}

func (dapc *dapClient) Transfer(ctx context.Context, dapIndex uint8, reqs []TransferRequest) (TransferStatus, []uint32, error) {
	for i := 0; i < transferWaitRetries; i++ {
		st, res, err := dapc.doTransfer(ctx, dapIndex, reqs)
		if err != nil && st.AckValue() == uint8(TransferStatusWait) {
			glog.V(3).Infof("Transfer: WAIT, retrying")
			continue
		}
		return st, res, err
	}
	return TransferStatusWait, nil, errors.Timeoutf("transfer")
}

func (dapc *dapClient) ResetTarget(ctx context.Context) error {
	return errors.Trace(dapc.execCheckStatus(ctx, newCmd(cmdResetTarget)))
}

func (dapc *dapClient) SWJClock(ctx context.Context, clockHz uint32) error {
	glog.V(3).Infof("SWJClock(%d)", clockHz)
	args := newCmd(cmdSWJClock)
	binary.Write(args, binary.LittleEndian, clockHz)
	return errors.Trace(dapc.execCheckStatus(ctx, args))
}

func (dapc *dapClient) SWJSequence(ctx context.Context, numBits int, data []uint8) error {
	glog.V(3).Infof("SWJSequence(%d, %v)", numBits, data)
	if numBits < 1 || numBits > 256 {
		return errors.NotValidf("sequence length %d", numBits)
	}
	if len(data) < (numBits+7)/8 {
		return errors.NotValidf("sequence data for %d bits", numBits)
	}
	args := newCmd(cmdSWJSequence)
	// 256 is encoded as 0.
	args.WriteByte(uint8(numBits))
	args.Write(data[:(numBits+7)/8])
	return errors.Trace(dapc.execCheckStatus(ctx, args))
}

func (dapc *dapClient) SWDConfigure(ctx context.Context, config uint8) error {
	glog.V(3).Infof("SWDConfigure(0x%02x)", config)
	args := newCmd(cmdSWDConfigure)
	args.WriteByte(config)
	return errors.Trace(dapc.execCheckStatus(ctx, args))
}

func (dapc *dapClient) Close(ctx context.Context) error {
	return errors.Trace(dapc.l.Close())
}
