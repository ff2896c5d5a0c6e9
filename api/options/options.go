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

// Package options specifies the budgets of the memory placement analysis.
package options

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Options controls how references are grouped and tiled.
type Options struct {
	// MaxSharedElements is the maximum number of elements in a shared memory tile.
	MaxSharedElements int64 `yaml:"maxSharedElements"`
	// SharedMemoryBytes is the maximum size in bytes of a shared memory tile.
	SharedMemoryBytes int64 `yaml:"sharedMemoryBytes"`
	// MaxPrivateElements is the maximum number of elements in a private tile.
	MaxPrivateElements int64 `yaml:"maxPrivateElements"`
	// MaxDisjuncts is the maximum number of disjuncts in the access relation
	// of a group. Groups requiring more are placed in global memory.
	MaxDisjuncts int `yaml:"maxDisjuncts"`

	// Logger receives the decisions of the analysis.
	Logger logrus.FieldLogger `yaml:"-"`
}

// Default returns the default options.
func Default() *Options {
	return &Options{
		MaxSharedElements:  16 * 1024,
		SharedMemoryBytes:  48 * 1024,
		MaxPrivateElements: 64,
		MaxDisjuncts:       8,
		Logger:             discardLogger(),
	}
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Validate checks that the options are usable.
func (opts *Options) Validate() error {
	if opts.MaxSharedElements < 0 {
		return errors.Errorf("invalid maximum number of shared elements: %d", opts.MaxSharedElements)
	}
	if opts.SharedMemoryBytes < 0 {
		return errors.Errorf("invalid shared memory size: %d", opts.SharedMemoryBytes)
	}
	if opts.MaxPrivateElements < 0 {
		return errors.Errorf("invalid maximum number of private elements: %d", opts.MaxPrivateElements)
	}
	if opts.MaxDisjuncts < 1 {
		return errors.Errorf("invalid maximum number of disjuncts: %d", opts.MaxDisjuncts)
	}
	return nil
}

// Log returns the logger of the options.
// A logger discarding all entries is returned if none has been set.
func (opts *Options) Log() logrus.FieldLogger {
	if opts == nil || opts.Logger == nil {
		return discardLogger()
	}
	return opts.Logger
}

// Parse decodes options from YAML.
// Fields missing from data keep their default value.
func Parse(data []byte) (*Options, error) {
	opts := Default()
	if err := yaml.UnmarshalStrict(data, opts); err != nil {
		return nil, errors.Wrapf(err, "cannot decode options")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Load reads options from a YAML file.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read options")
	}
	opts, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return opts, nil
}
