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
package dap

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLink struct {
	reqs  [][]byte
	resps [][]byte
}

func (l *fakeLink) WritePacket(ctx context.Context, data []byte) error {
	l.reqs = append(l.reqs, append([]byte(nil), data...))
	return nil
}

func (l *fakeLink) ReadPacket(ctx context.Context) ([]byte, error) {
	if len(l.resps) == 0 {
		return nil, errors.Errorf("no response queued")
	}
	r := l.resps[0]
	l.resps = l.resps[1:]
	return r, nil
}

func (l *fakeLink) MaxPacketSize() int { return 64 }
func (l *fakeLink) Close() error       { return nil }

func newTestClient(t *testing.T, l *fakeLink) DAPClient {
	l.resps = append([][]byte{{0x00, 0x02, 0x00, 0x02}}, l.resps...)
	dapc, err := NewClient(context.Background(), l)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0xff}, l.reqs[0])
	l.reqs = nil
	return dapc
}

func TestNewClientPacketSize(t *testing.T) {
	l := &fakeLink{}
	dapc := newTestClient(t, l)
	assert.Equal(t, 512, dapc.(*dapClient).maxPacketSize)
}

func TestTransferEncoding(t *testing.T) {
	l := &fakeLink{resps: [][]byte{
		{0x05, 0x02, 0x01, 0x78, 0x56, 0x34, 0x12},
	}}
	dapc := newTestClient(t, l)
	st, data, err := dapc.Transfer(context.Background(), 0, []TransferRequest{
		{Op: OpWrite, AP: true, Reg: 0x04, Data: 0x40000000},
		{Op: OpRead, AP: true, Reg: 0x0c},
	})
	require.NoError(t, err)
	assert.True(t, st.Ok())
	assert.Equal(t, []uint32{0x12345678}, data)
	assert.Equal(t, []byte{
		0x05, 0x00, 0x02,
		0x05, 0x00, 0x00, 0x00, 0x40,
		0x0f,
	}, l.reqs[0])
}

func TestTransferWaitRetry(t *testing.T) {
	l := &fakeLink{resps: [][]byte{
		{0x05, 0x00, 0x02},
		{0x05, 0x01, 0x01},
	}}
	dapc := newTestClient(t, l)
	_, _, err := dapc.Transfer(context.Background(), 0, []TransferRequest{{Op: OpWrite, Reg: 0x08}})
	require.NoError(t, err)
	assert.Len(t, l.reqs, 2)
}

func TestTransferFault(t *testing.T) {
	l := &fakeLink{resps: [][]byte{{0x05, 0x00, 0x04}}}
	dapc := newTestClient(t, l)
	_, _, err := dapc.Transfer(context.Background(), 0, []TransferRequest{{Op: OpRead, Reg: 0x00}})
	assert.Error(t, err)
	assert.Len(t, l.reqs, 1)
}

func TestTransferInvalidReg(t *testing.T) {
	l := &fakeLink{}
	dapc := newTestClient(t, l)
	_, _, err := dapc.Transfer(context.Background(), 0, []TransferRequest{{Op: OpRead, Reg: 0x01}})
	assert.True(t, errors.IsNotValid(errors.Cause(err)), "%s", err)
	assert.Empty(t, l.reqs)
}

func TestCheckStatus(t *testing.T) {
	l := &fakeLink{resps: [][]byte{
		{0x11, 0x00},
		{0x13, 0xff},
		{0x12},
	}}
	dapc := newTestClient(t, l)
	ctx := context.Background()
	assert.NoError(t, dapc.SWJClock(ctx, 1000000))
	assert.Equal(t, []byte{0x11, 0x40, 0x42, 0x0f, 0x00}, l.reqs[0])
	assert.Error(t, dapc.SWDConfigure(ctx, 0))
	assert.Error(t, dapc.SWJSequence(ctx, 16, []byte{0x9e, 0xe7}))
	assert.Error(t, dapc.SWJSequence(ctx, 16, []byte{0x9e}))
}

func TestInfoString(t *testing.T) {
	l := &fakeLink{resps: [][]byte{
		{0x00, 0x05, 'N', 'u', 'L', 'n', 0x00},
	}}
	dapc := newTestClient(t, l)
	s, err := dapc.GetProductID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NuLn", s)
	assert.Equal(t, []byte{0x00, 0x02}, l.reqs[0])
}
