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
	"fmt"
)

type BootSource int

const (
	BootFromAPROM BootSource = iota
	BootFromLDROM
)

func (b BootSource) String() string {
	if b == BootFromLDROM {
		return "LDROM"
	}
	return "APROM"
}

const (
	config0CBS  = 1 << 7
	config0Lock = 1 << 1
)

// UserConfig holds the CONFIG0..2 words.
type UserConfig struct {
	Config0, Config1, Config2 uint32
}

// BootSource decodes CONFIG0.CBS.
func (c UserConfig) BootSource() BootSource {
	if c.Config0&config0CBS == 0 {
		return BootFromLDROM
	}
	return BootFromAPROM
}

// Locked decodes CONFIG0.LOCK. Locked parts can only be unlocked by chip erase.
func (c UserConfig) Locked() bool {
	return c.Config0&config0Lock == 0
}

func (c UserConfig) String() string {
	return fmt.Sprintf("CONFIG0=0x%08x CONFIG1=0x%08x CONFIG2=0x%08x boot=%s locked=%t",
		c.Config0, c.Config1, c.Config2, c.BootSource(), c.Locked())
}

// ispctlBootSource decodes ISPCTL.BS, the source the core actually booted from.
func ispctlBootSource(ispctl uint32) BootSource {
	if ispctl&ispctlBS == 0 {
		return BootFromAPROM
	}
	return BootFromLDROM
}
