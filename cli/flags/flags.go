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
package flags

import (
	"os"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/nuisp/cli/flash/numicro"
	"github.com/mongoose-os/nuisp/cli/ourutil"
)

var (
	ProbeVID    = flag.Uint16("probe-vid", 0x0416, "CMSIS-DAP probe USB vendor ID (Nu-Link2 by default)")
	ProbePID    = flag.Uint16("probe-pid", 0, "CMSIS-DAP probe USB product ID, 0 matches any")
	ProbeSerial = flag.String("probe-serial", "", "CMSIS-DAP probe serial number, if more than one is connected")
	SWDClock    = flag.Uint32("swd-clock", 1000000, "SWD clock frequency, Hz")

	Strict       = flag.Bool("strict", false, "Treat ISP timeouts, faults and failed unlocks as errors")
	PollInterval = flag.Duration("poll-interval", numicro.DefaultPollPolicy.Interval, "Interval between ISP busy polls")
	PollMax      = flag.Int("poll-max", numicro.DefaultPollPolicy.MaxPolls, "Maximum number of ISP busy polls per command")
	DevicesFile  = flag.String("devices-file", "", "YAML file with additional device descriptions")

	Addr   = flag.Uint32("addr", 0, "Load address of binary images")
	Verify = flag.Bool("verify", false, "Read back and compare after flashing")
	NoRun  = flag.Bool("no-run", false, "Leave the core halted after flashing")
	Force  = flag.Bool("force", false, "Do not ask for confirmation")

	Timeout = flag.Duration("timeout", 0, "Overall operation timeout, 0 for none")
	Verbose = flag.Bool("verbose", false, "Verbose output")
)

// DriverOptions returns the ISP driver options selected by the flags.
func DriverOptions() ([]numicro.Option, error) {
	if *PollMax <= 0 {
		return nil, errors.NotValidf("--poll-max %d", *PollMax)
	}
	if *PollInterval < 0 {
		return nil, errors.NotValidf("--poll-interval %s", *PollInterval)
	}
	return []numicro.Option{
		numicro.WithStrict(*Strict),
		numicro.WithPollPolicy(numicro.PollPolicy{Interval: *PollInterval, MaxPolls: *PollMax}),
	}, nil
}

// LoadDevices registers the descriptors from --devices-file, if given.
func LoadDevices() error {
	if *DevicesFile == "" {
		return nil
	}
	f, err := os.Open(*DevicesFile)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	n, err := numicro.LoadDevices(f)
	if err != nil {
		return errors.Annotatef(err, "%s", *DevicesFile)
	}
	ourutil.Reportf("Loaded %d device(s) from %s", n, *DevicesFile)
	return nil
}
