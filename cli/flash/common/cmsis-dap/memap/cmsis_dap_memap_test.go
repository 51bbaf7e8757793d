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
package memap

import (
	"context"
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/nuisp/cli/flash/common/cmsis-dap/dp"
)

type fakeDP struct {
	dp.DPClient
	regs map[uint8]uint32
	log  []string
}

func (f *fakeDP) ReadAPReg(ctx context.Context, apSel, apReg uint8) (uint32, error) {
	f.log = append(f.log, fmt.Sprintf("R %d:%02x", apSel, apReg))
	return f.regs[apReg], nil
}

func (f *fakeDP) WriteAPReg(ctx context.Context, apSel, apReg uint8, value uint32) error {
	f.log = append(f.log, fmt.Sprintf("W %d:%02x=%08x", apSel, apReg, value))
	f.regs[apReg] = value
	return nil
}

func TestInit(t *testing.T) {
	f := &fakeDP{regs: map[uint8]uint32{uint8(IDR): 0x04770031, uint8(CSW): 0x03000040}}
	mapc := NewMemAPClient(f, 0)
	require.NoError(t, mapc.Init(context.Background()))
	assert.Equal(t, []string{"R 0:fc", "R 0:00", "W 0:00=23000002"}, f.log)
}

func TestInitDisabled(t *testing.T) {
	f := &fakeDP{regs: map[uint8]uint32{uint8(IDR): 0x04770031}}
	assert.Error(t, NewMemAPClient(f, 0).Init(context.Background()))
	f = &fakeDP{regs: map[uint8]uint32{}}
	err := NewMemAPClient(f, 1).Init(context.Background())
	assert.True(t, errors.IsNotFound(err), "%s", err)
}

func TestTargetReg(t *testing.T) {
	ctx := context.Background()
	f := &fakeDP{regs: map[uint8]uint32{uint8(DRW): 0x01132d00}}
	mapc := NewMemAPClient(f, 0)
	v, err := mapc.ReadTargetReg(ctx, 0x40000000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01132d00), v)
	require.NoError(t, mapc.WriteTargetReg(ctx, 0x40000100, 0x59))
	assert.Equal(t, []string{
		"W 0:04=40000000", "R 0:0c",
		"W 0:04=40000100", "W 0:0c=00000059",
	}, f.log)
	_, err = mapc.ReadTargetReg(ctx, 0x40000002)
	assert.True(t, errors.IsNotValid(err), "%s", err)
}
