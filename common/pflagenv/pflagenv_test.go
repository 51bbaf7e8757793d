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
package pflagenv

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("pflagenv-test", pflag.ContinueOnError)

	var myFlag1, myFlag2, myFlag3, myFlag4 string
	fs.StringVar(&myFlag1, "my-flag1", "def1", "")
	fs.StringVar(&myFlag2, "my-flag2", "def2", "")
	fs.StringVar(&myFlag3, "my-flag3", "def3", "")
	fs.StringVar(&myFlag4, "my-flag4", "def4", "")
	fs.Parse([]string{"--my-flag1=cl1", "--my-flag2="})

	os.Setenv("TEST_MY_FLAG1", "env1")
	os.Setenv("TEST_MY_FLAG2", "env2")
	os.Setenv("TEST_MY_FLAG3", "env3")
	defer func() {
		os.Unsetenv("TEST_MY_FLAG1")
		os.Unsetenv("TEST_MY_FLAG2")
		os.Unsetenv("TEST_MY_FLAG3")
	}()
	set, err := ParseFlagSet(fs, "TEST_")
	require.NoError(t, err)

	assert.Equal(t, []string{"my-flag3"}, set)
	assert.Equal(t, "cl1", myFlag1)
	assert.Equal(t, "", myFlag2)
	assert.Equal(t, "env3", myFlag3)
	assert.Equal(t, "def4", myFlag4)
	assert.True(t, fs.Lookup("my-flag3").Changed)
}

func TestParseFlagSetInvalid(t *testing.T) {
	fs := pflag.NewFlagSet("pflagenv-test", pflag.ContinueOnError)
	poll := fs.Duration("poll-interval", time.Millisecond, "")
	strict := fs.Bool("strict", false, "")
	fs.Parse(nil)

	os.Setenv("NUISP_POLL_INTERVAL", "fast")
	os.Setenv("NUISP_STRICT", "true")
	defer func() {
		os.Unsetenv("NUISP_POLL_INTERVAL")
		os.Unsetenv("NUISP_STRICT")
	}()
	set, err := ParseFlagSet(fs, "NUISP_")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "NUISP_POLL_INTERVAL")
	assert.Equal(t, []string{"strict"}, set)
	assert.Equal(t, time.Millisecond, *poll)
	assert.False(t, fs.Lookup("poll-interval").Changed)
	assert.True(t, *strict)
}
