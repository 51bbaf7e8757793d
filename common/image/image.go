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
// Package image loads firmware images to be programmed: Intel HEX files and raw binaries.
package image

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
)

// Segment is a contiguous run of data.
type Segment struct {
	Addr uint32
	Data []byte
}

func (s *Segment) End() uint32 {
	return s.Addr + uint32(len(s.Data))
}

func (s *Segment) String() string {
	return fmt.Sprintf("%d @ 0x%08x", len(s.Data), s.Addr)
}

type Image struct {
	Segments []*Segment
	// Entry point, if the file specifies one.
	Start uint32
}

// Size is the total number of data bytes.
func (img *Image) Size() int {
	n := 0
	for _, s := range img.Segments {
		n += len(s.Data)
	}
	return n
}

const (
	recData                   = 0
	recEOF                    = 1
	recExtendedSegmentAddress = 2
	recStartSegmentAddress    = 3
	recExtendedLinearAddress  = 4
	recStartLinearAddress     = 5
)

// ParseHex parses Intel HEX data. Gaps shorter than maxGapSize are filled with fill,
// longer ones start a new segment.
func ParseHex(hexData []byte, fill byte, maxGapSize int) (*Image, error) {
	img := &Image{}
	eof := false
	scanner := bufio.NewScanner(bytes.NewBuffer(hexData))
	lineNo := 0
	var cur *Segment
	var base uint32
	for !eof && scanner.Scan() {
		lineNo++
		l := strings.TrimSpace(scanner.Text())
		if len(l) == 0 {
			continue
		}
		if l[0] != ':' {
			return nil, errors.Errorf("line %d: invalid start of the line", lineNo)
		}
		if len(l) < 11 || len(l)%2 != 1 {
			return nil, errors.Errorf("line %d: too short (%d)", lineNo, len(l))
		}
		ld, err := hex.DecodeString(l[1:])
		if err != nil {
			return nil, errors.Errorf("line %d: error decoding record body", lineNo)
		}
		recLen := int(ld[0])
		if len(ld) != 4+recLen+1 {
			return nil, errors.Errorf("line %d: invalid length %d", lineNo, len(ld))
		}
		cs := uint8(0)
		for _, b := range ld[:len(ld)-1] {
			cs += b
		}
		cs = (cs ^ 0xff) + 1
		if want := ld[len(ld)-1]; cs != want {
			return nil, errors.Errorf("line %d: invalid checksum (want %02x, got %02x)", lineNo, want, cs)
		}
		offset := binary.BigEndian.Uint16(ld[1:3])
		recType := ld[3]
		body := ld[4 : 4+recLen]
		switch recType {
		case recData:
			addr := base + uint32(offset)
			if cur != nil && addr != cur.End() {
				if addr > cur.End() && int(addr-cur.End()) < maxGapSize {
					cur.Data = append(cur.Data, bytes.Repeat([]byte{fill}, int(addr-cur.End()))...)
				} else {
					img.Segments = append(img.Segments, cur)
					cur = nil
				}
			}
			if cur == nil {
				cur = &Segment{Addr: addr}
			}
			cur.Data = append(cur.Data, body...)
		case recEOF:
			eof = true
		case recExtendedSegmentAddress:
			if recLen != 2 {
				return nil, errors.Errorf("line %d: invalid extended segment address", lineNo)
			}
			base = uint32(binary.BigEndian.Uint16(body)) << 4
		case recStartSegmentAddress:
			if recLen != 4 {
				return nil, errors.Errorf("line %d: invalid start segment address", lineNo)
			}
			img.Start = uint32(binary.BigEndian.Uint16(body))<<4 | uint32(binary.BigEndian.Uint16(body[2:]))
		case recExtendedLinearAddress:
			if recLen != 2 {
				return nil, errors.Errorf("line %d: invalid extended linear address", lineNo)
			}
			base = uint32(binary.BigEndian.Uint16(body)) << 16
		case recStartLinearAddress:
			if recLen != 4 {
				return nil, errors.Errorf("line %d: invalid start linear address", lineNo)
			}
			img.Start = binary.BigEndian.Uint32(body)
		default:
			return nil, errors.Errorf("line %d: unsupported record type (%d)", lineNo, recType)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotatef(err, "line %d", lineNo)
	}
	if !eof {
		return nil, errors.Errorf("unexpected end of data")
	}
	if cur != nil {
		img.Segments = append(img.Segments, cur)
	}
	return img, nil
}

// FromBinary wraps raw data to be placed at addr.
func FromBinary(data []byte, addr uint32) *Image {
	return &Image{
		Segments: []*Segment{{Addr: addr, Data: data}},
		Start:    addr,
	}
}

// LoadFile reads an image. Files with .hex or .ihex extension are parsed as Intel HEX,
// anything else is loaded as a binary at binAddr.
func LoadFile(fname string, binAddr uint32, fill byte, maxGapSize int) (*Image, error) {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".hex", ".ihex":
		img, err := ParseHex(data, fill, maxGapSize)
		if err != nil {
			return nil, errors.Annotatef(err, "%s: error parsing hex data", fname)
		}
		return img, nil
	}
	if len(data) == 0 {
		return nil, errors.NotValidf("%s: empty file", fname)
	}
	return FromBinary(data, binAddr), nil
}
