// Copyright 2025 Google LLC
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

// Command gpugroup groups the array references of kernels and reports
// where the accesses of each group are performed.
//
// Kernels are read from a YAML description (see package kerneldesc).
// The analysis of a kernel failing does not prevent the other kernels
// from being analysed.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/gx-org/gpugroup/api/options"
	"github.com/gx-org/gpugroup/build/fmterr"
	"github.com/gx-org/gpugroup/build/group"
	"github.com/gx-org/gpugroup/build/kernel/kerneldesc"
	"github.com/gx-org/gpugroup/tools/gpuflag"
	"github.com/gx-org/gpugroup/tools/gpugroup/report"
)

var (
	kernelsPath = flag.String("kernels", "", "YAML description of the kernels")
	optionsPath = flag.String("options", "", "YAML file overriding the default budgets")
	arrays      = gpuflag.StringList("arrays", "only report the groups of these arrays")
	color       = flag.Bool("color", false, "highlight placements with terminal colors")
	logLevel    = gpuflag.LogLevel("log_level", logrus.WarnLevel, "level of the analysis log written on the standard error")
)

func loadOptions() (*options.Options, error) {
	opts := options.Default()
	if *optionsPath != "" {
		var err error
		if opts, err = options.Load(*optionsPath); err != nil {
			return nil, err
		}
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(*logLevel)
	opts.Logger = logger
	return opts, nil
}

func run(w io.Writer) error {
	if *kernelsPath == "" {
		return errors.Errorf("no kernel description specified: please use --kernels")
	}
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	_, kernels, err := kerneldesc.Load(*kernelsPath)
	if err != nil {
		return err
	}
	var reports []report.Kernel
	var errs fmterr.Errors
	for _, kern := range kernels {
		reg, err := group.GroupReferences(kern, opts)
		if err != nil {
			errs.Append(err)
			reports = append(reports, report.Failed(kern, err))
			continue
		}
		reports = append(reports, report.Build(kern, reg, *arrays))
		reg.Free()
	}
	if err := report.WriteColor(w, reports, *color); err != nil {
		return err
	}
	return errs.ToError()
}

func main() {
	flag.Parse()
	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}
