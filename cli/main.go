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
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/nuisp/cli/flags"
	"github.com/mongoose-os/nuisp/common/pflagenv"
	"github.com/mongoose-os/nuisp/version"
)

const (
	envPrefix = "NUISP_"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

type handler func(ctx context.Context) error

type command struct {
	name     string
	handler  handler
	short    string
	args     string
	required []string
	optional []string
}

var commands []command

func init() {
	// Handlers refer to the table (help), so it is filled in at init time.
	commands = []command{
		{"info", info, `Connect to the target and show the part, its memories and commands`, "", nil, []string{"probe-vid", "probe-pid", "probe-serial", "devices-file"}},
		{"flash", flash, `Program a .hex or .bin image`, "<file>", nil, []string{"addr", "verify", "no-run", "strict"}},
		{"cmd", runCmd, `Run a part-specific command, see "info" for the list`, "<name> [args...]", nil, []string{"force", "strict"}},
		{"script", runScript, `Run part-specific commands from a file, one per line`, "<file>", nil, []string{"force", "strict"}},
		{"devices", listDevices, `List supported parts`, "", nil, []string{"devices-file"}},
		{"help", help, `Show help for a command`, "[command]", nil, nil},
	}
}

func findCommand(name string) *command {
	for i := range commands {
		if commands[i].name == name {
			return &commands[i]
		}
	}
	return nil
}

func run(ctx context.Context) error {
	c := findCommand(flag.Arg(0))
	if c == nil {
		usage()
		if flag.NArg() > 0 {
			return errors.NotFoundf("command %q", flag.Arg(0))
		}
		return nil
	}
	if err := checkFlags(c.required); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.handler(ctx))
}

func main() {
	initFlags()
	flag.Parse()
	if _, err := pflagenv.Parse(envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if *flags.Verbose {
		flag.Set("v", "1")
	}

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		fmt.Printf("%s\nVersion: %s\n", "Nuvoton NuMicro ISP flash tool", version.String())
		return
	}

	ctx := context.Background()
	if *flags.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *flags.Timeout)
		defer cancel()
	}

	if err := run(ctx); err != nil {
		glog.Infof("Error: %+v", err)
		glog.Flush()
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	glog.Flush()
}
