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
package cortex

import (
	"context"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMem struct {
	regs   map[uint32]uint32
	writes []uint32
}

func (m *fakeMem) ReadTargetReg(ctx context.Context, addr uint32) (uint32, error) {
	return m.regs[addr], nil
}

func (m *fakeMem) WriteTargetReg(ctx context.Context, addr uint32, value uint32) error {
	m.writes = append(m.writes, addr, value)
	if addr == regDHCSR && value&dhcsrCHalt != 0 {
		m.regs[regDHCSR] |= dhcsrSHalt
	}
	return nil
}

type nopDelayer struct{ n int }

func (d *nopDelayer) Delay(ctx context.Context, dur time.Duration) error {
	d.n++
	return nil
}

func TestTargetName(t *testing.T) {
	assert.Equal(t, "ARM Cortex-M0 r0p0", TargetName(0x410cc200, 0))
	assert.Equal(t, "ARM Cortex-M4F r0p1", TargetName(0x410fc241, 0xc))
	assert.Equal(t, uint32(PartCortexM0), PartNo(0x410cc200))
}

func TestInit(t *testing.T) {
	ctx := context.Background()
	m := &fakeMem{regs: map[uint32]uint32{regCPUID: 0x410cc200}}
	require.NoError(t, NewCM0Debug(m, &nopDelayer{}).Init(ctx))
	m.regs[regCPUID] = 0x410fc241
	assert.Error(t, NewCM0Debug(m, &nopDelayer{}).Init(ctx))
}

func TestHalt(t *testing.T) {
	ctx := context.Background()
	m := &fakeMem{regs: map[uint32]uint32{}}
	d := &nopDelayer{}
	require.NoError(t, NewCM0Debug(m, d).Halt(ctx))
	assert.Equal(t, []uint32{regDHCSR, regDHCSRKey | dhcsrCHalt | dhcsrCDebugEn}, m.writes)
	assert.Equal(t, 0, d.n)
}

func TestWaitHaltTimeout(t *testing.T) {
	m := &fakeMem{regs: map[uint32]uint32{}}
	d := &nopDelayer{}
	err := NewCM0Debug(m, d).WaitHalt(context.Background())
	assert.True(t, errors.IsTimeout(err), "%s", err)
	assert.Equal(t, haltPollMax, d.n)
}
