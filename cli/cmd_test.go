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
package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScript(t *testing.T) {
	lines, err := parseScript(strings.NewReader(`
# Wipe and check.
erase_aprom
  read_configs   
set_config0 "0xffffff7f"
`))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, scriptLine{lineNo: 3, args: []string{"erase_aprom"}}, lines[0])
	assert.Equal(t, scriptLine{lineNo: 4, args: []string{"read_configs"}}, lines[1])
	assert.Equal(t, scriptLine{lineNo: 5, args: []string{"set_config0", "0xffffff7f"}}, lines[2])

	_, err = parseScript(strings.NewReader("read_uid\nerase_ldrom \"unterminated\n"))
	assert.Error(t, err)
}

func TestIsDestructive(t *testing.T) {
	assert.True(t, isDestructive("erase_chip"))
	assert.True(t, isDestructive("set_config1"))
	assert.False(t, isDestructive("read_uid"))
	assert.False(t, isDestructive("read_configs"))
}
