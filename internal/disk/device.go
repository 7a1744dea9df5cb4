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

// Package disk opens a device or image file and exposes it as a
// blockid.ByteSource, querying real sector/device geometry through ioctls
// on Linux block devices and falling back to sane defaults for regular
// files.
package disk

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ostafen/blockid/internal/blockid"
	"github.com/ostafen/blockid/internal/fs"
)

// DefaultSectorSize is used for regular files and any device whose
// logical sector size can't be queried.
const DefaultSectorSize = 512

// Device wraps an opened device or image file, exposing blockid.ByteSource
// (and, on a real Linux block device, blockid.OpalQuerier).
type Device struct {
	Path       string
	SectorSize uint64
	IsBlockDev bool
	Zoned      bool

	size int64
	file fs.File
}

// Open opens path for reading through internal/fs's cross-platform
// File abstraction (a plain *os.File on Unix, a raw CreateFile handle on
// Windows). Where the concrete file is an *os.File on a block device,
// ioctls refine sector size/total size/zoned-ness beyond the defaults a
// regular image file gets.
func Open(path string) (*Device, error) {
	path = normalizeDevicePath(path)

	file, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("disk: stat %s: %w", path, err)
	}

	d := &Device{
		Path:       path,
		file:       file,
		IsBlockDev: stat.Mode()&os.ModeDevice != 0,
		SectorSize: DefaultSectorSize,
		size:       stat.Size(),
	}

	if osFile, ok := file.(*os.File); ok && d.IsBlockDev && runtime.GOOS == "linux" {
		if sz, err := queryLogicalSectorSize(osFile); err == nil {
			d.SectorSize = sz
		}
		if sz, err := queryDeviceSize(osFile); err == nil {
			d.size = sz
		}
		d.Zoned = queryZoned(osFile)
	}

	if d.size == 0 {
		size, err := seekEnd(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("disk: determine size of %s: %w", path, err)
		}
		d.size = size
	}

	return d, nil
}

// seekEnd determines a file's size via Seek for concrete types that
// support it (every current fs.File implementation does); Stat already
// covers the common case, this is only the regular-file fallback.
func seekEnd(file fs.File) (int64, error) {
	type seeker interface {
		Seek(offset int64, whence int) (int64, error)
	}
	s, ok := file.(seeker)
	if !ok {
		return 0, fmt.Errorf("disk: file type does not support seeking")
	}
	return s.Seek(0, io.SeekEnd)
}

// normalizeDevicePath delegates to NormalizeVolumePath (volume.go,
// kept from digler) to turn a bare Windows drive letter into a raw
// volume path; a no-op everywhere else.
func normalizeDevicePath(path string) string {
	return NormalizeVolumePath(path)
}

func (d *Device) Close() error { return d.file.Close() }

// ReadAt implements blockid.ByteSource.
func (d *Device) ReadAt(p []byte, off int64) (int, error) { return d.file.ReadAt(p, off) }

// Size implements blockid.ByteSource.
func (d *Device) Size() int64 { return d.size }

var _ blockid.ByteSource = (*Device)(nil)

// OpalLocked implements blockid.OpalQuerier. There is no portable OPAL
// lock-state ioctl in golang.org/x/sys/unix; this reports "not locked"
// for every device rather than guessing, matching
// original_source/containers/luks.rs's own OPAL check being a best-effort
// annotation rather than a gate on the match itself.
func (d *Device) OpalLocked() (bool, error) {
	return false, nil
}

func queryLogicalSectorSize(f *os.File) (uint64, error) {
	sz, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET)
	if err != nil {
		return 0, err
	}
	return uint64(sz), nil
}

func queryDeviceSize(f *os.File) (int64, error) {
	sz, err := unix.IoctlGetUint64(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, err
	}
	return int64(sz), nil
}

// queryZoned reports whether the device is a zoned block device. The
// kernel exposes this through sysfs (queue/zoned), not a dedicated
// ioctl, so this reads that file directly rather than guessing at an
// ioctl number; any error (no sysfs entry, non-block-device path) is
// treated as "not zoned".
func queryZoned(f *os.File) bool {
	name, err := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", f.Fd()))
	if err != nil {
		return false
	}
	base := name[strings.LastIndexByte(name, '/')+1:]
	data, err := os.ReadFile("/sys/block/" + base + "/queue/zoned")
	if err != nil {
		return false
	}
	return string(bytes.TrimSpace(data)) != "none"
}
