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
package main

import (
	"context"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/nuisp/cli/flags"
	"github.com/mongoose-os/nuisp/cli/flash/common"
	"github.com/mongoose-os/nuisp/cli/flash/common/cmsis-dap/dap"
	"github.com/mongoose-os/nuisp/cli/flash/common/cmsis-dap/dp"
	"github.com/mongoose-os/nuisp/cli/flash/common/cmsis-dap/memap"
	"github.com/mongoose-os/nuisp/cli/flash/common/cortex"
	"github.com/mongoose-os/nuisp/cli/flash/numicro"
	"github.com/mongoose-os/nuisp/cli/ourutil"
)

// session is a connected and identified target, with its core halted.
type session struct {
	dapc   dap.DAPClient
	core   cortex.CortexDebug
	target *common.Target
	driver *numicro.Driver
}

var (
	swdLineReset = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	swdIdle      = []byte{0, 0}
	jtagToSWD    = []byte{0x9e, 0xe7}
)

func swdInit(ctx context.Context, dapc dap.DAPClient) error {
	if err := dapc.Connect(ctx, dap.ConnectModeSWD); err != nil {
		return errors.Annotatef(err, "failed to connect to debug probe in SWD mode")
	}
	if err := dapc.SWJClock(ctx, *flags.SWDClock); err != nil {
		return errors.Annotatef(err, "failed to set clock")
	}
	if err := dapc.SWDConfigure(ctx, 0); err != nil {
		return errors.Annotatef(err, "failed to configure SWD")
	}
	// Line reset, JTAG-to-SWD switch, line reset again.
	for _, seq := range []struct {
		bits int
		data []byte
	}{
		{64, swdLineReset}, {16, swdIdle},
		{64, swdLineReset}, {16, jtagToSWD},
		{64, swdLineReset}, {16, swdIdle},
	} {
		if err := dapc.SWJSequence(ctx, seq.bits, seq.data); err != nil {
			return errors.Annotatef(err, "SWD reset sequence failed")
		}
	}
	return errors.Annotatef(dapc.TransferConfigure(ctx, 0, 100, 100), "failed to configure transfers")
}

// connect opens the probe, brings up the debug port and identifies the part.
// A part that is not recognized is an error here, the tool has nothing to do with it.
func connect(ctx context.Context) (*session, error) {
	if err := flags.LoadDevices(); err != nil {
		return nil, errors.Trace(err)
	}
	opts, err := flags.DriverOptions()
	if err != nil {
		return nil, errors.Trace(err)
	}
	opts = append(opts, numicroDelayOptions()...)
	link, err := dap.OpenUSB(*flags.ProbeVID, *flags.ProbePID, *flags.ProbeSerial)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open debug probe")
	}
	dapc, err := dap.NewClient(ctx, link)
	if err != nil {
		link.Close()
		return nil, errors.Annotatef(err, "failed to init debug probe")
	}
	s := &session{dapc: dapc}
	if err := s.init(ctx, opts); err != nil {
		s.close()
		return nil, errors.Trace(err)
	}
	return s, nil
}

func (s *session) init(ctx context.Context, opts []numicro.Option) error {
	vendor, err := s.dapc.GetVendorID(ctx)
	if err != nil {
		return errors.Annotatef(err, "failed to get probe info")
	}
	product, _ := s.dapc.GetProductID(ctx)
	serial, _ := s.dapc.GetSerialNumber(ctx)
	fwVersion, _ := s.dapc.GetFirmwareVersion(ctx)
	ourutil.Reportf("CMSIS-DAP probe %s %s v%s S/N %s", vendor, product, fwVersion, serial)
	if err := swdInit(ctx, s.dapc); err != nil {
		return errors.Trace(err)
	}
	dpc := dp.NewDPClient(s.dapc)
	if err := dpc.Init(ctx); err != nil {
		return errors.Annotatef(err, "failed to init DP, is the target connected and powered on?")
	}
	dpidr, err := dpc.GetIDR(ctx)
	if err != nil {
		return errors.Annotatef(err, "failed to read DP ID")
	}
	mapc := memap.NewMemAPClient(dpc, 0 /* apSel */)
	if err := mapc.Init(ctx); err != nil {
		return errors.Annotatef(err, "failed to init AP")
	}
	cpuid, err := cortex.ReadCPUID(ctx, mapc)
	if err != nil {
		return errors.Annotatef(err, "failed to read CPUID")
	}
	tgtName, err := cortex.GetTargetName(ctx, mapc)
	if err != nil {
		return errors.Annotatef(err, "failed to get target name")
	}
	ourutil.Reportf("Core: %s, DP v%d rev%d (%s), minimal? %t",
		tgtName, dpidr.Version(), dpidr.Revision(), dpidr.Designer(), dpidr.Minimal())
	s.core = cortex.NewCM0Debug(mapc, common.SleepDelayer)
	if err := s.core.Init(ctx); err != nil {
		return errors.Annotatef(err, "failed to init CM0 debug")
	}
	if err := s.dapc.SetHostStatus(ctx, dap.StatusConnected, true); err != nil {
		glog.V(1).Infof("SetHostStatus: %s", err)
	}
	if err := s.core.ResetHalt(ctx); err != nil {
		return errors.Annotatef(err, "failed to reset-halt the target")
	}
	s.target = common.NewTarget(mapc, common.SleepDelayer, cpuid, tgtName)
	if s.driver, err = numicro.Probe(ctx, s.target, opts...); err != nil {
		return errors.Annotatef(err, "failed to identify the part")
	}
	if s.driver == nil {
		return errors.NotSupportedf("part on %s", tgtName)
	}
	ourutil.Reportf("Part: %s", s.target.Driver)
	return nil
}

func (s *session) close() {
	ctx := context.Background()
	s.dapc.SetHostStatus(ctx, dap.StatusConnected, false)
	if err := s.dapc.Disconnect(ctx); err != nil {
		glog.V(1).Infof("Disconnect: %s", err)
	}
	s.dapc.Close(ctx)
}

// run resets the core and lets it go.
func (s *session) run(ctx context.Context) error {
	return errors.Annotatef(s.core.ResetRun(ctx), "failed to reset the target")
}
