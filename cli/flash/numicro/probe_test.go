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
package numicro

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/nuisp/cli/flash/common"
)

const (
	cpuidCortexM0 = 0x410cc200
	cpuidCortexM4 = 0x410fc241
	chipIDM032    = 0x01132D00
)

func probeM032(t *testing.T, opts ...Option) (*fakeTarget, *common.Target, *Driver) {
	ft := newFakeTarget()
	ft.regs[regChipID] = chipIDM032
	tgt := common.NewTarget(ft, &recordingDelayer{}, cpuidCortexM0, "ARM Cortex-M0 r0p0")
	d, err := Probe(context.Background(), tgt, opts...)
	require.NoError(t, err)
	require.NotNil(t, d)
	return ft, tgt, d
}

func TestProbeM032(t *testing.T) {
	_, tgt, d := probeM032(t)

	assert.Equal(t, "M032LD2AE", tgt.Driver)
	assert.Equal(t, "M032LD2AE", d.Device().Name)
	assert.Equal(t, []common.RAM{{Start: 0x20000000, Length: 0x2000}}, tgt.RAM())

	type region struct {
		name      string
		start     uint32
		length    int
		blockSize int
	}
	var regions []region
	for _, f := range tgt.Flash() {
		assert.Equal(t, byte(0xff), f.Erased)
		assert.Equal(t, 4, f.WriteSize)
		regions = append(regions, region{f.Name, f.Start, f.Length, f.BlockSize})
	}
	assert.Equal(t, []region{
		{"APROM", 0x00000000, 0x10000, 512},
		{"LDROM", 0x00100000, 0x800, 512},
		{"CONFIG", 0x00300000, 12, 4},
	}, regions)

	var names []string
	for _, c := range tgt.Commands() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{
		"erase_aprom", "erase_chip", "erase_ldrom", "erase_mass", "erase_sprom",
		"read_aprom_page1", "read_cid", "read_configs", "read_uid",
		"set_config0", "set_config1", "set_config2",
	}, names)
	assert.Equal(t, []string{"M032xxxxx"}, tgt.CommandGroups())
}

func TestProbeUnknownChip(t *testing.T) {
	ft := newFakeTarget()
	ft.regs[regChipID] = 0xFFFFFFFF
	tgt := common.NewTarget(ft, &recordingDelayer{}, cpuidCortexM0, "ARM Cortex-M0 r0p0")

	d, err := Probe(context.Background(), tgt)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, "ARM Cortex-M0 r0p0", tgt.Driver)
	assert.Empty(t, tgt.Flash())
	assert.Empty(t, tgt.RAM())
	assert.Empty(t, tgt.Commands())
}

func TestProbeOtherCore(t *testing.T) {
	ft := newFakeTarget()
	ft.regs[regChipID] = chipIDM032
	tgt := common.NewTarget(ft, &recordingDelayer{}, cpuidCortexM4, "ARM Cortex-M4F r0p1")

	d, err := Probe(context.Background(), tgt)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Empty(t, ft.reads)
	assert.Empty(t, tgt.Flash())
}

func TestProgramThroughRegions(t *testing.T) {
	ft, tgt, _ := probeM032(t)
	ctx := context.Background()

	data := []byte{1, 2, 3, 4, 5, 6}
	require.NoError(t, common.Program(ctx, tgt, 0x10, data, &common.ProgramOpts{Verify: true}))
	assert.Equal(t, []ispOp{{op: OpErase, addr: 0}}, ft.opsOf(OpErase))
	assert.Len(t, ft.opsOf(OpWrite), pageSize/4)
	assert.Len(t, ft.opsOf(OpRead), pageSize/4)
	assert.Equal(t, uint32(0x04030201), ft.flash[0x10])
	assert.Equal(t, uint32(0xffff0605), ft.flash[0x14])
	assert.Equal(t, uint32(0xffffffff), ft.flash[0x0c])
	assert.Equal(t, uint32(ispctlAPUEN), ft.regs[regISPCTL]&ispctlAPUEN)
	assert.Equal(t, uint32(0), ft.regs[regISPCTL]&ispctlLDUEN)

	require.NoError(t, common.Program(ctx, tgt, 0x100000, []byte{0xaa, 0xbb, 0xcc, 0xdd}, nil))
	assert.Equal(t, uint32(0xddccbbaa), ft.flash[0x100000])
	assert.Equal(t, uint32(ispctlLDUEN), ft.regs[regISPCTL]&ispctlLDUEN)
}

func TestProgramOutsideFlash(t *testing.T) {
	_, tgt, _ := probeM032(t)
	err := common.Program(context.Background(), tgt, 0x10000, []byte{1, 2, 3, 4}, nil)
	assert.Error(t, err)
}

func TestDriverReadMisaligned(t *testing.T) {
	_, tgt, d := probeM032(t)
	_, err := d.Read(context.Background(), tgt.FlashByName("APROM"), 0, 6)
	assert.Error(t, err)
}

func TestProgramTimedOutIsAnError(t *testing.T) {
	ft, tgt, _ := probeM032(t, WithPollPolicy(PollPolicy{Interval: time.Millisecond, MaxPolls: 1}))
	ft.stuck = true

	err := common.Program(context.Background(), tgt, 0, []byte{1, 2, 3, 4}, nil)
	assert.True(t, errors.IsTimeout(errors.Cause(err)), "%v", err)
	// Nothing is written after a block that did not finish erasing.
	assert.Empty(t, ft.opsOf(OpWrite))
}
