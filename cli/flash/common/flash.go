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
	"fmt"

	"github.com/juju/errors"
)

// FlashDriver performs the erase and program operations of a flash region.
type FlashDriver interface {
	// Erase erases length bytes at addr. Both must be multiples of f.BlockSize.
	Erase(ctx context.Context, f *Flash, addr uint32, length int) error
	// Write programs data at dest. Both must be multiples of f.WriteSize.
	Write(ctx context.Context, f *Flash, dest uint32, data []byte) error
}

type Flash struct {
	Name      string
	Start     uint32
	Length    int
	BlockSize int
	WriteSize int
	// Value of every byte after erase.
	Erased byte

	Driver FlashDriver
}

func (f *Flash) End() uint32 {
	return f.Start + uint32(f.Length)
}

func (f *Flash) Contains(addr uint32) bool {
	return addr >= f.Start && addr < f.End()
}

func (f *Flash) Erase(ctx context.Context, addr uint32, length int) error {
	return f.Driver.Erase(ctx, f, addr, length)
}

func (f *Flash) Write(ctx context.Context, dest uint32, data []byte) error {
	return f.Driver.Write(ctx, f, dest, data)
}

func (f *Flash) validate() error {
	switch {
	case f.Length <= 0:
		return errors.NotValidf("region %s size %d", f.Name, f.Length)
	case f.BlockSize <= 0 || f.Length%f.BlockSize != 0:
		return errors.NotValidf("region %s block size %d", f.Name, f.BlockSize)
	case f.WriteSize <= 0 || f.BlockSize%f.WriteSize != 0:
		return errors.NotValidf("region %s write size %d", f.Name, f.WriteSize)
	case f.Driver == nil:
		return errors.NotValidf("region %s without driver", f.Name)
	case uint64(f.Start)+uint64(f.Length) > 1<<32:
		return errors.NotValidf("region %s end", f.Name)
	}
	return nil
}

func (f *Flash) String() string {
	return fmt.Sprintf("%s [0x%08x, 0x%08x) block %d", f.Name, f.Start, f.End(), f.BlockSize)
}

// Command is an operator-invoked action registered by a driver.
type Command interface {
	Name() string
	Help() string
	Run(ctx context.Context, t *Target, args []string) error
}

type commandFunc struct {
	name, help string
	f          func(ctx context.Context, t *Target, args []string) error
}

func NewCommand(name, help string, f func(ctx context.Context, t *Target, args []string) error) Command {
	return &commandFunc{name: name, help: help, f: f}
}

func (c *commandFunc) Name() string { return c.name }
func (c *commandFunc) Help() string { return c.help }

func (c *commandFunc) Run(ctx context.Context, t *Target, args []string) error {
	return c.f(ctx, t, args)
}
