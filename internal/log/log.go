// Copyright The gnumach-go Authors.
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

// Package log provides the small leveled-logging facade the allocator
// writes boot and diagnostic messages through. Callers supply their own
// Logger (to a kernel console, to stderr, to nothing); the package itself
// never decides where bytes go.
package log

import (
	"fmt"
	"os"
)

// Logger is implemented by anything that can receive leveled, printf-style
// log messages.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warningf(format string, v ...any)
}

// StdLogger writes to os.Stderr with a "vm_page: " prefix, matching the
// original C sources' printf convention.
type StdLogger struct {
	Prefix string
}

func (l StdLogger) Debugf(format string, v ...any)    { l.emit("DEBUG", format, v...) }
func (l StdLogger) Infof(format string, v ...any)     { l.emit("INFO", format, v...) }
func (l StdLogger) Warningf(format string, v ...any)  { l.emit("WARN", format, v...) }
func (l StdLogger) emit(level, format string, v ...any) {
	prefix := l.Prefix
	if prefix == "" {
		prefix = "vm_page"
	}
	fmt.Fprintf(os.Stderr, "%s: %s: %s\n", prefix, level, fmt.Sprintf(format, v...))
}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(string, ...any)   {}
func (discard) Infof(string, ...any)    {}
func (discard) Warningf(string, ...any) {}

// Panicf logs a fixed boot-tier failure message at Warning level then
// panics with it, mirroring boot_panic(biosmem_panic_*_msg) in
// i386at/biosmem.c: boot failures are unrecoverable and always carry a
// fixed message, never an error value.
func Panicf(l Logger, msg string) {
	if l != nil {
		l.Warningf("%s", msg)
	}
	panic(msg)
}
