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

	"github.com/golang/glog"
	"github.com/juju/errors"
)

// FlashReader is implemented by drivers that can read flash contents back.
type FlashReader interface {
	Read(ctx context.Context, f *Flash, addr uint32, length int) ([]byte, error)
}

type ProgramOpts struct {
	Verify bool
	// Progress, if set, is called after each region chunk is written.
	Progress func(f *Flash, addr uint32, length int)
}

// Program writes data at addr, erasing the affected blocks first.
// Data may span several regions. Partial blocks are padded with the erased value.
func Program(ctx context.Context, t *Target, addr uint32, data []byte, opts *ProgramOpts) error {
	if opts == nil {
		opts = &ProgramOpts{}
	}
	for len(data) > 0 {
		f := t.FlashAt(addr)
		if f == nil {
			return errors.NotFoundf("flash region at 0x%08x", addr)
		}
		n := int(f.End() - addr)
		if n > len(data) {
			n = len(data)
		}
		if err := programChunk(ctx, f, addr, data[:n], opts); err != nil {
			return errors.Annotatef(err, "%s @ 0x%08x", f.Name, addr)
		}
		addr += uint32(n)
		data = data[n:]
	}
	return nil
}

func programChunk(ctx context.Context, f *Flash, addr uint32, data []byte, opts *ProgramOpts) error {
	bs := uint32(f.BlockSize)
	start := addr - (addr-f.Start)%bs
	end := addr + uint32(len(data))
	if rem := (end - f.Start) % bs; rem != 0 {
		end += bs - rem
	}
	buf := bytes.Repeat([]byte{f.Erased}, int(end-start))
	copy(buf[addr-start:], data)
	if start != addr || end != addr+uint32(len(data)) {
		glog.V(1).Infof("%s: padding [0x%08x, 0x%08x) to [0x%08x, 0x%08x)",
			f.Name, addr, addr+uint32(len(data)), start, end)
	}
	if err := f.Erase(ctx, start, len(buf)); err != nil {
		return errors.Annotatef(err, "erase failed")
	}
	if err := f.Write(ctx, start, buf); err != nil {
		return errors.Annotatef(err, "write failed")
	}
	if opts.Verify {
		fr, ok := f.Driver.(FlashReader)
		if !ok {
			return errors.NotSupportedf("verification of %s", f.Name)
		}
		rb, err := fr.Read(ctx, f, start, len(buf))
		if err != nil {
			return errors.Annotatef(err, "read back failed")
		}
		if len(rb) != len(buf) {
			return errors.Errorf("short read back (%d of %d)", len(rb), len(buf))
		}
		for i := range buf {
			if rb[i] != buf[i] {
				return errors.Errorf("verification failed at 0x%08x: want 0x%02x, got 0x%02x",
					start+uint32(i), buf[i], rb[i])
			}
		}
	}
	if opts.Progress != nil {
		opts.Progress(f, addr, len(data))
	}
	return nil
}
