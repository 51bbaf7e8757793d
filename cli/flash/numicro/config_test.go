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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserConfigDecode(t *testing.T) {
	for i, c := range []struct {
		config0 uint32
		boot    BootSource
		locked  bool
	}{
		{config0: 0xffffffff, boot: BootFromAPROM, locked: false},
		{config0: 0xffffff7f, boot: BootFromLDROM, locked: false},
		{config0: 0xfffffffd, boot: BootFromAPROM, locked: true},
		{config0: 0x00000000, boot: BootFromLDROM, locked: true},
	} {
		uc := UserConfig{Config0: c.config0}
		assert.Equal(t, c.boot, uc.BootSource(), "%d", i)
		assert.Equal(t, c.locked, uc.Locked(), "%d", i)
	}
}

func TestUserConfigString(t *testing.T) {
	uc := UserConfig{Config0: 0xffffff7f, Config1: 1, Config2: 2}
	assert.Equal(t, "CONFIG0=0xffffff7f CONFIG1=0x00000001 CONFIG2=0x00000002 boot=LDROM locked=false", uc.String())
}

func TestISPCTLBootSource(t *testing.T) {
	assert.Equal(t, BootFromAPROM, ispctlBootSource(ispctlISPEN))
	assert.Equal(t, BootFromLDROM, ispctlBootSource(ispctlISPEN|ispctlBS))
}
