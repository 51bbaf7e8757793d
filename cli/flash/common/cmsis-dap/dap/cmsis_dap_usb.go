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
// +build !no_libudev

package dap

import (
	"context"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flash/common"
)

// Large enough for any CMSIS-DAP v2 response we ask for.
const usbReadBufSize = 1024

type usbLink struct {
	uctx *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
	mps  int
}

// OpenUSB opens a CMSIS-DAP v2 probe (vendor-specific bulk interface).
func OpenUSB(vid, pid uint16, serial string) (Link, error) {
	uctx, dev, err := common.OpenUSBDevice(gousb.ID(vid), gousb.ID(pid), serial)
	if err != nil {
		return nil, errors.Trace(err)
	}
	l := &usbLink{uctx: uctx, dev: dev}
	if err := l.open(); err != nil {
		l.Close()
		return nil, errors.Trace(err)
	}
	return l, nil
}

func (l *usbLink) open() error {
	bi, err := common.FindBulkInterface(l.dev, "CMSIS-DAP")
	if err != nil {
		return errors.Annotatef(err, "no CMSIS-DAP v2 interface")
	}
	glog.Infof("Using %s intf %d.%d.%d, ep in %d out %d", l.dev, bi.Config, bi.Interface, bi.Alternate, bi.EpIn, bi.EpOut)
	if err := l.dev.SetAutoDetach(true); err != nil {
		glog.V(1).Infof("SetAutoDetach: %s", err)
	}
	if l.cfg, err = l.dev.Config(bi.Config); err != nil {
		return errors.Annotatef(err, "failed to set config %d", bi.Config)
	}
	if l.intf, err = l.cfg.Interface(bi.Interface, bi.Alternate); err != nil {
		return errors.Annotatef(err, "failed to claim interface %d", bi.Interface)
	}
	if l.in, err = l.intf.InEndpoint(bi.EpIn); err != nil {
		return errors.Annotatef(err, "failed to open IN endpoint %d", bi.EpIn)
	}
	if l.out, err = l.intf.OutEndpoint(bi.EpOut); err != nil {
		return errors.Annotatef(err, "failed to open OUT endpoint %d", bi.EpOut)
	}
	l.mps = bi.MaxPacketSize
	return nil
}

func (l *usbLink) WritePacket(ctx context.Context, data []byte) error {
	n, err := l.out.WriteContext(ctx, data)
	if err != nil {
		return errors.Trace(err)
	}
	if n != len(data) {
		return errors.Errorf("short write (%d of %d)", n, len(data))
	}
	return nil
}

func (l *usbLink) ReadPacket(ctx context.Context) ([]byte, error) {
	buf := make([]byte, usbReadBufSize)
	n, err := l.in.ReadContext(ctx, buf)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return buf[:n], nil
}

func (l *usbLink) MaxPacketSize() int {
	return l.mps
}

func (l *usbLink) Close() error {
	if l.intf != nil {
		l.intf.Close()
	}
	if l.cfg != nil {
		l.cfg.Close()
	}
	if l.dev != nil {
		l.dev.Close()
	}
	if l.uctx != nil {
		l.uctx.Close()
	}
	return nil
}
