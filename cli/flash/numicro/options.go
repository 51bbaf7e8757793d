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
	"time"
)

// PollPolicy bounds the wait for ISPGO to clear.
type PollPolicy struct {
	Interval time.Duration
	MaxPolls int
}

var DefaultPollPolicy = PollPolicy{Interval: time.Millisecond, MaxPolls: 100}

type Config struct {
	Poll PollPolicy

	// Strict turns timeouts, ISP faults and failed unlocks into errors and
	// verifies ISPCTL after enabling. When not set, these are logged and the
	// operation carries on, reporting an unverified or timed out result.
	Strict bool

	// Settling time after changing AHBCLK and ISPCTL.
	EnableSettle time.Duration
	// Delay after each page erase.
	EraseDelay time.Duration
	// Delay after each word write.
	WriteDelay time.Duration
	// Delay after chip erase.
	ChipEraseSettle time.Duration
}

// DefaultConfig returns the settings used when no options are given.
func DefaultConfig() Config {
	return Config{
		Poll:            DefaultPollPolicy,
		EnableSettle:    100 * time.Millisecond,
		EraseDelay:      100 * time.Millisecond,
		WriteDelay:      10 * time.Millisecond,
		ChipEraseSettle: 100 * time.Millisecond,
	}
}

type Option func(*Config)

func WithPollPolicy(p PollPolicy) Option {
	return func(c *Config) {
		c.Poll = p
	}
}

func WithStrict(strict bool) Option {
	return func(c *Config) {
		c.Strict = strict
	}
}

// WithDelays overrides the settling delays. Zero values are kept as zero.
func WithDelays(enable, erase, write, chipErase time.Duration) Option {
	return func(c *Config) {
		c.EnableSettle = enable
		c.EraseDelay = erase
		c.WriteDelay = write
		c.ChipEraseSettle = chipErase
	}
}
