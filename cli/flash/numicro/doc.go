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

// Package numicro drives the ISP (In-System Programming) controller of
// Nuvoton NuMicro M032 parts through debug register access.
//
// Every flash operation is a sequence of single ISP commands: the opcode,
// address and data are written to the FMC registers, ISPGO is set and polled
// until the controller clears it. Before any command the protected registers
// are unlocked and the ISP clock and controller are enabled; the enable bits
// are only ever ORed in, so operations compose freely.
//
// Probe identifies the part by its chip ID and registers its RAM, flash
// regions and diagnostic commands on a common.Target.
package numicro
