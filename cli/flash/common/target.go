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
package common

import (
	"context"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
)

type TargetMemReader interface {
	// ReadTargetReg reads a single 32-bit word from the target (handy for reading registers).
	ReadTargetReg(ctx context.Context, addr uint32) (uint32, error)
}

type TargetMemWriter interface {
	// WriteTargetReg writes a single 32-bit word to the target.
	WriteTargetReg(ctx context.Context, addr uint32, value uint32) error
}

type TargetMemReaderWriter interface {
	TargetMemReader
	TargetMemWriter
}

// Delayer pauses between steps of a hardware operation.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration) error
}

type sleepDelayer struct{}

// SleepDelayer waits on the wall clock.
var SleepDelayer Delayer = sleepDelayer{}

func (sleepDelayer) Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-t.C:
		return nil
	}
}

type Core interface {
	// ResetRun resets the system and lets it run without debug.
	ResetRun(ctx context.Context) error
	// ResetHalt performs reset and halts the system in debug mode.
	ResetHalt(ctx context.Context) error
	// Halt stops the core where it is.
	Halt(ctx context.Context) error
	// WaitHalt waits for core to halt.
	WaitHalt(ctx context.Context) error
}

type RAM struct {
	Start  uint32
	Length int
}

// Target is a connected device: its register access, its core identity and
// whatever memories and commands a driver registered for it.
type Target struct {
	Mem     TargetMemReaderWriter
	Delayer Delayer

	// CPUID as read from the SCB.
	CPUID uint32
	// Driver names the part once a driver recognized it, or the generic core name before that.
	Driver string

	ram      []RAM
	flash    []*Flash
	commands map[string]Command
	groups   []string
}

func NewTarget(mem TargetMemReaderWriter, delayer Delayer, cpuid uint32, name string) *Target {
	if delayer == nil {
		delayer = SleepDelayer
	}
	return &Target{
		Mem:      mem,
		Delayer:  delayer,
		CPUID:    cpuid,
		Driver:   name,
		commands: make(map[string]Command),
	}
}

func (t *Target) AddRAM(start uint32, length int) {
	glog.V(1).Infof("RAM: %d @ 0x%08x", length, start)
	t.ram = append(t.ram, RAM{Start: start, Length: length})
}

// AddFlash registers a flash region. Regions must not overlap.
func (t *Target) AddFlash(f *Flash) error {
	if err := f.validate(); err != nil {
		return errors.Trace(err)
	}
	for _, of := range t.flash {
		if f.Start < of.End() && of.Start < f.End() {
			return errors.AlreadyExistsf("region %s [0x%08x, 0x%08x) overlaps %s [0x%08x, 0x%08x)",
				f.Name, f.Start, f.End(), of.Name, of.Start, of.End())
		}
	}
	glog.V(1).Infof("Flash: %s", f)
	t.flash = append(t.flash, f)
	sort.Slice(t.flash, func(i, j int) bool { return t.flash[i].Start < t.flash[j].Start })
	return nil
}

func (t *Target) RAM() []RAM {
	return t.ram
}

func (t *Target) Flash() []*Flash {
	return t.flash
}

// FlashAt returns the region containing addr, or nil.
func (t *Target) FlashAt(addr uint32) *Flash {
	for _, f := range t.flash {
		if f.Contains(addr) {
			return f
		}
	}
	return nil
}

// FlashByName returns the region with the given name, or nil.
func (t *Target) FlashByName(name string) *Flash {
	for _, f := range t.flash {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (t *Target) AddCommands(group string, cmds []Command) {
	for _, c := range cmds {
		if _, ok := t.commands[c.Name()]; ok {
			glog.Warningf("%s: command %q already registered, ignored", group, c.Name())
			continue
		}
		t.commands[c.Name()] = c
	}
	t.groups = append(t.groups, group)
}

func (t *Target) Command(name string) (Command, bool) {
	c, ok := t.commands[name]
	return c, ok
}

// Commands returns registered commands sorted by name.
func (t *Target) Commands() []Command {
	var res []Command
	for _, c := range t.commands {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name() < res[j].Name() })
	return res
}

func (t *Target) CommandGroups() []string {
	return t.groups
}

// RunCommand looks up a command by name and runs it.
func (t *Target) RunCommand(ctx context.Context, name string, args []string) error {
	c, ok := t.commands[name]
	if !ok {
		return errors.NotFoundf("command %q", name)
	}
	glog.V(1).Infof("Running %s %v", name, args)
	return errors.Trace(c.Run(ctx, t, args))
}
