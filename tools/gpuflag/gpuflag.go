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

// Package gpuflag provides flag types for the analysis tools.
package gpuflag

import (
	"flag"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type stringList struct {
	list *[]string
}

func (sl *stringList) String() string {
	if sl.list == nil {
		return ""
	}
	return strings.Join(*sl.list, ",")
}

func (sl *stringList) Set(values string) error {
	for _, value := range strings.Split(values, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		*sl.list = append(*sl.list, value)
	}
	return nil
}

// StringList returns a flag to pass a list of string from the command line.
func StringList(name, doc string) *[]string {
	return StringListVar(flag.CommandLine, name, doc)
}

// StringListVar defines a string list flag in a flag set.
// Values are separated by commas and the flag can be repeated.
func StringListVar(fs *flag.FlagSet, name, doc string) *[]string {
	var list []string
	sList := stringList{&list}
	fs.Var(&sList, name, doc)
	return sList.list
}

type logLevel struct {
	level *logrus.Level
}

func (l *logLevel) String() string {
	if l.level == nil {
		return ""
	}
	return l.level.String()
}

func (l *logLevel) Set(value string) error {
	level, err := logrus.ParseLevel(value)
	if err != nil {
		return errors.Wrapf(err, "invalid log level")
	}
	*l.level = level
	return nil
}

// LogLevel returns a flag to set the level of a logger from the command line.
func LogLevel(name string, def logrus.Level, doc string) *logrus.Level {
	return LogLevelVar(flag.CommandLine, name, def, doc)
}

// LogLevelVar defines a logrus level flag in a flag set.
func LogLevelVar(fs *flag.FlagSet, name string, def logrus.Level, doc string) *logrus.Level {
	level := def
	fs.Var(&logLevel{&level}, name, doc)
	return &level
}
