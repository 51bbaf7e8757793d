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
	"bytes"
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noReadDriver struct {
	d *memDriver
}

func (d noReadDriver) Erase(ctx context.Context, f *Flash, addr uint32, length int) error {
	return d.d.Erase(ctx, f, addr, length)
}

func (d noReadDriver) Write(ctx context.Context, f *Flash, dest uint32, data []byte) error {
	return d.d.Write(ctx, f, dest, data)
}

func twoRegionTarget(t *testing.T, drv FlashDriver) *Target {
	tgt := NewTarget(nil, nil, 0, "test")
	require.NoError(t, tgt.AddFlash(&Flash{Name: "A", Start: 0, Length: 0x400, BlockSize: 0x200, WriteSize: 4, Erased: 0xff, Driver: drv}))
	require.NoError(t, tgt.AddFlash(&Flash{Name: "B", Start: 0x400, Length: 0x100, BlockSize: 0x80, WriteSize: 4, Erased: 0xff, Driver: drv}))
	return tgt
}

func TestProgramPadding(t *testing.T) {
	drv := newMemDriver()
	tgt := twoRegionTarget(t, drv)
	drv.mem[0x1ff] = 0x55

	var progress [][2]uint32
	opts := &ProgramOpts{
		Verify: true,
		Progress: func(f *Flash, addr uint32, length int) {
			progress = append(progress, [2]uint32{addr, uint32(length)})
		},
	}
	require.NoError(t, Program(context.Background(), tgt, 0x10, []byte{1, 2, 3}, opts))
	assert.Equal(t, [][2]uint32{{0, 0x200}}, drv.erases)
	assert.Equal(t, [][2]uint32{{0, 0x200}}, drv.writes)
	assert.Equal(t, [][2]uint32{{0x10, 3}}, progress)
	assert.Equal(t, byte(0xff), drv.mem[0x0f])
	assert.Equal(t, byte(3), drv.mem[0x12])
	assert.Equal(t, byte(0xff), drv.mem[0x13])
	assert.Equal(t, byte(0xff), drv.mem[0x1ff])
}

func TestProgramAcrossRegions(t *testing.T) {
	drv := newMemDriver()
	tgt := twoRegionTarget(t, drv)

	data := bytes.Repeat([]byte{0xa5}, 0x300)
	require.NoError(t, Program(context.Background(), tgt, 0x200, data, nil))
	assert.Equal(t, [][2]uint32{{0x200, 0x200}, {0x400, 0x100}}, drv.erases)
	assert.Equal(t, [][2]uint32{{0x200, 0x200}, {0x400, 0x100}}, drv.writes)

	err := Program(context.Background(), tgt, 0x4f0, data[:0x20], nil)
	assert.True(t, errors.IsNotFound(errors.Cause(err)), "%v", err)
}

func TestProgramVerifyUnsupported(t *testing.T) {
	tgt := twoRegionTarget(t, noReadDriver{newMemDriver()})
	err := Program(context.Background(), tgt, 0, []byte{1, 2, 3, 4}, &ProgramOpts{Verify: true})
	assert.True(t, errors.IsNotSupported(err), "%v", err)
}

type corruptingDriver struct {
	*memDriver
}

func (d corruptingDriver) Read(ctx context.Context, f *Flash, addr uint32, length int) ([]byte, error) {
	res, err := d.memDriver.Read(ctx, f, addr, length)
	res[5] ^= 1
	return res, err
}

func TestProgramVerifyMismatch(t *testing.T) {
	tgt := twoRegionTarget(t, corruptingDriver{newMemDriver()})
	err := Program(context.Background(), tgt, 0, []byte{1, 2, 3, 4, 5, 6, 7, 8}, &ProgramOpts{Verify: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed at 0x00000005")
}
