//go:build windows
// +build windows

package mount

import (
	"os"
	"path/filepath"

	"github.com/vfskit/vfskit/internal/metrics"
	"github.com/vfskit/vfskit/pkg/errors"
	"github.com/vfskit/vfskit/pkg/vfs"
)

// detectPlatformCapabilities probes for a WinFsp installation. Windows never
// offers the cooperative kernel loop.
func detectPlatformCapabilities() Capabilities {
	var c Capabilities
	for _, env := range []string{"ProgramFiles(x86)", "ProgramFiles"} {
		root := os.Getenv(env)
		if root == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, "WinFsp")); err == nil {
			c.FUSEAvailable = true
			break
		}
	}
	return c
}

func currentOwner() (uint32, uint32) {
	// WinFsp maps ownership from the mounting process; the POSIX ids in the
	// stat record are placeholders on Windows.
	return 0, 0
}

func newPlatformAdapter(fsys vfs.FileSystem, mountPoint string, opts *MountOptions, collector *metrics.Collector, caps Capabilities) (Adapter, error) {
	if !caps.FUSEAvailable {
		return nil, errors.New(errors.ErrCodePlatformNotSupported, "WinFsp is not installed")
	}
	return newWinfspAdapter(fsys, mountPoint, opts, collector), nil
}
