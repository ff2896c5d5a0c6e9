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

package fmterr

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

type (
	// ErrorWithArray is an error attached to an array of a kernel.
	ErrorWithArray interface {
		error
		Kernel() string
		Array() string
		Err() error
	}

	errorWithArray struct {
		kernel string
		array  string
		err    error
	}
)

// Array attaches a kernel and an array to an error.
func Array(kernel, array string, err error) ErrorWithArray {
	return errorWithArray{kernel: kernel, array: array, err: err}
}

// Internal marks an error as internal.
func Internal(err error) error {
	return fmt.Errorf("gpugroup internal error. This is a bug. Please report it. Error:\n%+v", err)
}

// Error returns a string description of the error.
func (err errorWithArray) Error() string {
	return fmt.Sprintf("kernel %s: array %s: %s", err.kernel, err.array, err.err.Error())
}

// Unwrap the error.
func (err errorWithArray) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
// The verbose formatting %+v includes the stack trace where the error has been created.
func (err errorWithArray) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			io.WriteString(s, err.Error())
			var withSt interface {
				StackTrace() errors.StackTrace
			}
			if errors.As(err.err, &withSt) {
				fmt.Fprintf(s, "\nError generated at:%+v\n", withSt.StackTrace())
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, err.Error())
	case 'q':
		fmt.Fprintf(s, "%q", err.Error())
	}
}

func (err errorWithArray) Kernel() string {
	return err.kernel
}

func (err errorWithArray) Array() string {
	return err.array
}

func (err errorWithArray) Err() error {
	return err.err
}
