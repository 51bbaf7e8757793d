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
	goflag "flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/nuisp/common/multierror"
	"github.com/mongoose-os/nuisp/version"
)

var (
	hiddenFlags = []string{
		"alsologtostderr",
		"log_backtrace_at",
		"log_dir",
		"logtostderr",
		"stderrthreshold",
		"v",
		"vmodule",
	}
)

func initFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	hideFlags()
	flag.Usage = usage
}

func hideFlags() {
	for _, f := range hiddenFlags {
		flag.CommandLine.MarkHidden(f)
	}
}

func unhideFlags() {
	for _, f := range hiddenFlags {
		f := flag.Lookup(f)
		if f != nil {
			f.Hidden = false
		}
	}
}

func checkFlags(fs []string) error {
	var errs error
	for _, req := range fs {
		f := flag.Lookup(req)
		if f == nil {
			errs = multierror.Append(errs, errors.Errorf("--%s is required", req))
		} else if !f.Changed {
			errs = multierror.Append(errs, errors.Errorf("--%s is required\t\t%s", f.Name, f.Usage))
		}
	}
	return errors.Trace(errs)
}

func printFlag(w io.Writer, opt string, name string) {
	f := flag.Lookup(name)
	if f == nil {
		return
	}
	arg := "<" + f.Value.Type() + ">"
	if f.Value.Type() == "bool" {
		arg = ""
	}
	fmt.Fprintf(w, "  --%s %s\t%s. %s, default value: %q\n", name, arg, f.Usage, opt, f.DefValue)
}

func printCommandHelp(w io.Writer, c *command) {
	fmt.Fprintf(w, "%s %s %s\n\n%s.\n", os.Args[0], c.name, c.args, c.short)
	if len(c.required)+len(c.optional) == 0 {
		return
	}
	fmt.Fprintf(w, "\nFlags:\n")
	for _, name := range c.required {
		printFlag(w, "Required", name)
	}
	for _, name := range c.optional {
		printFlag(w, "Optional", name)
	}
}

func usage() {
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 1, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Nuvoton NuMicro ISP flash tool ")
	color.New(color.FgGreen).Fprintf(w, "%s\n", version.String())

	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  %s <command>\n", os.Args[0])
	fmt.Fprintf(w, "\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s %s\t\t%s\n", c.name, c.args, c.short)
	}

	fmt.Fprintf(w, "\nGlobal Flags:\n")
	if *helpFull {
		fmt.Fprint(w, flag.CommandLine.FlagUsages())
	} else {
		for _, name := range []string{"probe-vid", "probe-pid", "probe-serial", "strict", "verbose", "timeout"} {
			printFlag(w, "Optional", name)
		}
		fmt.Fprintf(w, "\nAll flags can also be set from %s<FLAG> environment variables, e.g. %sPROBE_SERIAL.\n", envPrefix, envPrefix)
	}
}

func help(ctx context.Context) error {
	name := flag.Arg(1)
	if name == "" {
		usage()
		return nil
	}
	c := findCommand(name)
	if c == nil {
		return errors.NotFoundf("command %q", name)
	}
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 1, ' ', 0)
	printCommandHelp(w, c)
	return errors.Trace(w.Flush())
}
