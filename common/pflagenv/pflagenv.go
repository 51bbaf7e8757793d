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
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/spf13/pflag"

	"github.com/mongoose-os/nuisp/common/multierror"
)

// ParseFlagSet iterates through all flags not set on the command line,
// checks if there is an environment variable with the uppercased flag name
// prepended with the given envPrefix, and if so, sets flag value to the
// environment variable value. Returns names of the flags it set.
//
// It should be called after Parse is called for the given FlagSet.
func ParseFlagSet(fs *pflag.FlagSet, envPrefix string) ([]string, error) {
	var set []string
	var errs error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		envName := getEnvName(f.Name, envPrefix)
		envVar, ok := os.LookupEnv(envName)
		if !ok || envVar == "" {
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVar); err != nil {
			// Some values are clobbered by a failed Set.
			if rerr := f.Value.Set(prev); rerr != nil {
				glog.Errorf("%s: failed to restore %q: %s", f.Name, prev, rerr)
			}
			errs = multierror.Append(errs, errors.Annotatef(err, "%s", envName))
			return
		}
		set = append(set, f.Name)
	})
	sort.Strings(set)
	return set, errs
}

// The same as ParseFlagSet, but operates on a default FlagSet: pflag.CommandLine
func Parse(envPrefix string) ([]string, error) {
	return ParseFlagSet(pflag.CommandLine, envPrefix)
}

func getEnvName(flagName, envPrefix string) string {
	flagName = strings.ToUpper(flagName)
	flagName = strings.Replace(flagName, "-", "_", -1)
	return fmt.Sprint(envPrefix, flagName)
}
