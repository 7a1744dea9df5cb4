// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package buildinfo carries the version banner printed by cmd/main.go.
// digler's own main.go imports "github.com/ostafen/digler/internal/env"
// for this, a package that does not exist anywhere in its tree; this
// replaces that dead reference with the equivalent built on the
// standard library's own build-info facilities, overridable at link
// time with -ldflags -X for a release build.
package buildinfo

import "runtime/debug"

var (
	// Version is set via -ldflags "-X .../internal/buildinfo.Version=..."
	// by release builds; "dev" otherwise.
	Version = "dev"
	// CommitHash is set the same way; falls back to the embedded VCS
	// revision from runtime/debug.ReadBuildInfo when not overridden.
	CommitHash = ""
	// BuildTime is set the same way; empty when not overridden.
	BuildTime = ""

	// DefaultCacheFile is the compile-time default cache path spec.md §6
	// describes ("the build pipeline supplies a compile-time default
	// cache path"). The cache itself is out of scope for this module;
	// this variable exists only so the cache-file command has a documented
	// default to report.
	DefaultCacheFile = "/run/blockid/blockid.tab"
)

func init() {
	if CommitHash != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			CommitHash = s.Value
		}
		if s.Key == "vcs.time" {
			BuildTime = s.Value
		}
	}
}
