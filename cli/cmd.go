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
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/juju/errors"
	shellwords "github.com/mattn/go-shellwords"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/nuisp/cli/flags"
	"github.com/mongoose-os/nuisp/cli/ourutil"
)

// Commands that destroy flash contents.
func isDestructive(name string) bool {
	return strings.HasPrefix(name, "erase_") || strings.HasPrefix(name, "set_config")
}

func confirmDestructive(names []string) error {
	var destructive []string
	for _, name := range names {
		if isDestructive(name) {
			destructive = append(destructive, name)
		}
	}
	if len(destructive) == 0 || *flags.Force {
		return nil
	}
	if !ourutil.Confirm("About to run " + strings.Join(destructive, ", ") + ". Continue?") {
		return errors.Errorf("aborted")
	}
	return nil
}

func runCmd(ctx context.Context) error {
	if flag.NArg() < 2 {
		return errors.Errorf("usage: cmd <name> [args...]")
	}
	name, args := flag.Arg(1), flag.Args()[2:]
	if err := confirmDestructive([]string{name}); err != nil {
		return errors.Trace(err)
	}
	s, err := connect(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.close()
	return errors.Trace(s.target.RunCommand(ctx, name, args))
}

type scriptLine struct {
	lineNo int
	args   []string
}

// parseScript splits a command file into words. Empty lines and lines
// starting with # are skipped.
func parseScript(r io.Reader) ([]scriptLine, error) {
	var res []scriptLine
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		l := strings.TrimSpace(scanner.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		args, err := shellwords.Parse(l)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNo)
		}
		if len(args) == 0 {
			continue
		}
		res = append(res, scriptLine{lineNo: lineNo, args: args})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotatef(err, "line %d", lineNo)
	}
	return res, nil
}

func runScript(ctx context.Context) error {
	if flag.NArg() != 2 {
		return errors.Errorf("usage: script <file>")
	}
	f, err := os.Open(flag.Arg(1))
	if err != nil {
		return errors.Trace(err)
	}
	lines, err := parseScript(f)
	f.Close()
	if err != nil {
		return errors.Annotatef(err, "%s", flag.Arg(1))
	}
	var names []string
	for _, l := range lines {
		names = append(names, l.args[0])
	}
	if err := confirmDestructive(names); err != nil {
		return errors.Trace(err)
	}

	s, err := connect(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.close()
	// Check all the names before running anything.
	for _, l := range lines {
		if _, ok := s.target.Command(l.args[0]); !ok {
			return errors.NotFoundf("%s:%d: command %q", flag.Arg(1), l.lineNo, l.args[0])
		}
	}
	for _, l := range lines {
		ourutil.Reportf("> %s", strings.Join(l.args, " "))
		if err := s.target.RunCommand(ctx, l.args[0], l.args[1:]); err != nil {
			return errors.Annotatef(err, "%s:%d", flag.Arg(1), l.lineNo)
		}
	}
	return nil
}
