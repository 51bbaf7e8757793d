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
// +build !no_libudev

package common

import (
	"strings"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"
)

// OpenUSBDevice opens a USB device with specified VID, PID and (optionally) serial number.
// If pid is 0, any product of the vendor matches. If serial number is empty, it is not checked.
// If multiple devices match the criteria, one of them will be returned.
func OpenUSBDevice(vid, pid gousb.ID, serial string) (*gousb.Context, *gousb.Device, error) {
	uctx := gousb.NewContext()
	devs, err := uctx.OpenDevices(func(dd *gousb.DeviceDesc) bool {
		result := (dd.Vendor == vid && (pid == 0 || dd.Product == pid))
		glog.V(1).Infof("Dev %+v", dd)
		return result
	})
	// OpenDevices may fail overall but still return results. Only fail if no devices were returned.
	if err != nil && len(devs) == 0 {
		uctx.Close()
		return nil, nil, errors.Annotatef(err, "failed to enumerate USB devices")
	}
	var res *gousb.Device
	for _, dev := range devs {
		if res != nil {
			dev.Close()
			continue
		}
		sn, _ := dev.SerialNumber()
		glog.V(1).Infof("Dev %+v sn '%s'", dev, sn)
		if serial == "" || sn == serial {
			res = dev
		} else {
			dev.Close()
		}
	}
	if res == nil {
		sp := ""
		if serial != "" {
			sp = "/"
		}
		uctx.Close()
		return nil, nil, errors.NotFoundf("device matching %s:%s%s%s", vid, pid, sp, serial)
	}
	return uctx, res, nil
}

// BulkInterface identifies a vendor-specific interface with one bulk endpoint in each direction.
type BulkInterface struct {
	Config, Interface, Alternate int
	EpIn, EpOut                  int
	MaxPacketSize                int
}

// FindBulkInterface looks for an interface whose description contains descSubstr
// (any vendor-specific bulk interface if descSubstr is empty or descriptions are not readable).
func FindBulkInterface(dev *gousb.Device, descSubstr string) (*BulkInterface, error) {
	var fallback *BulkInterface
	for cfgNum, cfg := range dev.Desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != gousb.ClassVendorSpec {
					continue
				}
				bi := &BulkInterface{Config: cfgNum, Interface: alt.Number, Alternate: alt.Alternate, EpIn: -1, EpOut: -1}
				for _, ep := range alt.Endpoints {
					if ep.TransferType != gousb.TransferTypeBulk {
						continue
					}
					if ep.Direction == gousb.EndpointDirectionIn {
						if bi.EpIn < 0 {
							bi.EpIn = ep.Number
							bi.MaxPacketSize = ep.MaxPacketSize
						}
					} else if bi.EpOut < 0 {
						bi.EpOut = ep.Number
					}
				}
				if bi.EpIn < 0 || bi.EpOut < 0 {
					continue
				}
				desc, err := dev.InterfaceDescription(cfgNum, alt.Number, alt.Alternate)
				glog.V(1).Infof("Intf %d.%d.%d %q (%v) %+v", cfgNum, alt.Number, alt.Alternate, desc, err, bi)
				if descSubstr == "" || (err == nil && strings.Contains(desc, descSubstr)) {
					return bi, nil
				}
				if fallback == nil {
					fallback = bi
				}
			}
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, errors.NotFoundf("bulk interface %q on %s", descSubstr, dev)
}
