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
	"io"
	"io/ioutil"
	"sort"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

const (
	pageSize   = 512
	configSize = 12

	// Used by erase_sprom when the part description does not size SPROM.
	defaultSPROMSize = 0x200
)

type RegionSize struct {
	Size      int `yaml:"size"`
	BlockSize int `yaml:"block_size"`
}

// Device describes one supported part. Regions with zero size are not registered.
type Device struct {
	ChipID  uint32     `yaml:"chip_id"`
	Name    string     `yaml:"name"`
	RAMSize int        `yaml:"ram_size"`
	APROM   RegionSize `yaml:"aprom"`
	LDROM   RegionSize `yaml:"ldrom"`
	SPROM   RegionSize `yaml:"sprom"`
	Config  RegionSize `yaml:"config"`
}

type region struct {
	name   string
	base   uint32
	size   RegionSize
	unlock UnlockFlags
}

// regions lists the configured areas in address order.
func (d *Device) regions() []region {
	all := []region{
		{"APROM", apromBase, d.APROM, UnlockAPROM},
		{"LDROM", ldromBase, d.LDROM, UnlockLDROM},
		{"SPROM", spromBase, d.SPROM, UnlockSPROM},
		{"CONFIG", configBase, d.Config, UnlockConfig},
	}
	var res []region
	for _, r := range all {
		if r.size.Size > 0 {
			res = append(res, r)
		}
	}
	return res
}

func (d *Device) validate() error {
	if d.Name == "" {
		return errors.NotValidf("device 0x%08x without name", d.ChipID)
	}
	if d.RAMSize <= 0 {
		return errors.NotValidf("%s RAM size %d", d.Name, d.RAMSize)
	}
	rs := d.regions()
	for i, r := range rs {
		if r.size.BlockSize <= 0 || r.size.Size%r.size.BlockSize != 0 || r.size.BlockSize%4 != 0 {
			return errors.NotValidf("%s %s size %d block %d", d.Name, r.name, r.size.Size, r.size.BlockSize)
		}
		if i+1 < len(rs) && r.base+uint32(r.size.Size) > rs[i+1].base {
			return errors.NotValidf("%s %s overlaps %s", d.Name, r.name, rs[i+1].name)
		}
	}
	return nil
}

var devicesByID = map[uint32]*Device{}

// RegisterDevice adds a part to the table. Chip IDs must be unique.
func RegisterDevice(d *Device) error {
	if err := d.validate(); err != nil {
		return errors.Trace(err)
	}
	if od, ok := devicesByID[d.ChipID]; ok {
		return errors.AlreadyExistsf("chip ID 0x%08x (%s)", d.ChipID, od.Name)
	}
	devicesByID[d.ChipID] = d
	return nil
}

func LookupDevice(chipID uint32) *Device {
	return devicesByID[chipID]
}

// Devices returns all known parts ordered by chip ID.
func Devices() []*Device {
	var res []*Device
	for _, d := range devicesByID {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ChipID < res[j].ChipID })
	return res
}

// LoadDevices reads a YAML list of devices and registers them.
func LoadDevices(r io.Reader) (int, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return 0, errors.Trace(err)
	}
	var devs []*Device
	if err := yaml.UnmarshalStrict(data, &devs); err != nil {
		return 0, errors.Annotatef(err, "invalid device list")
	}
	for i, d := range devs {
		if err := RegisterDevice(d); err != nil {
			return i, errors.Annotatef(err, "device %d", i)
		}
	}
	return len(devs), nil
}

func init() {
	for _, d := range []*Device{
		{
			ChipID:  0x01132D00,
			Name:    "M032LD2AE",
			RAMSize: 0x2000,
			APROM:   RegionSize{Size: 0x10000, BlockSize: pageSize},
			LDROM:   RegionSize{Size: 0x800, BlockSize: pageSize},
			Config:  RegionSize{Size: configSize, BlockSize: 4},
		},
	} {
		if err := RegisterDevice(d); err != nil {
			panic(err)
		}
	}
}
