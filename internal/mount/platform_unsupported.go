//go:build !linux && !darwin && !windows
// +build !linux,!darwin,!windows

package mount

import (
	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

func detectPlatformCapabilities() Capabilities {
	return Capabilities{}
}

func newPlatformAdapter(fsys vfs.FileSystem, mountPoint string, opts *MountOptions, collector *metrics.Collector, caps Capabilities) (Adapter, error) {
	return nil, errors.New(errors.ErrCodePlatformNotSupported, "mounting is not supported on this platform")
}
