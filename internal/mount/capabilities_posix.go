//go:build linux || darwin
// +build linux darwin

package mount

import (
	"os"
	"os/exec"
	"runtime"
)

// detectPlatformCapabilities probes for a usable FUSE installation. On Linux
// that means the kernel device plus the fusermount helper. On macOS, macFUSE
// supports the cooperative kernel loop; fuse-t provides FUSE semantics over
// NFS but not the loop, so it only enables the fallback driver.
func detectPlatformCapabilities() Capabilities {
	var c Capabilities

	switch runtime.GOOS {
	case "linux":
		if _, err := os.Stat("/dev/fuse"); err == nil {
			if _, err := exec.LookPath("fusermount3"); err == nil {
				c.FUSEAvailable = true
			} else if _, err := exec.LookPath("fusermount"); err == nil {
				c.FUSEAvailable = true
			}
		}
		c.CooperativeLoop = c.FUSEAvailable

	case "darwin":
		if _, err := os.Stat("/Library/Filesystems/macfuse.fs"); err == nil {
			c.FUSEAvailable = true
			c.CooperativeLoop = true
		} else if _, err := exec.LookPath("fuse-t"); err == nil {
			c.FUSEAvailable = true
		} else if _, err := os.Stat("/Library/Application Support/fuse-t"); err == nil {
			c.FUSEAvailable = true
		}
	}

	return c
}

func currentOwner() (uint32, uint32) {
	return uint32(os.Getuid()), uint32(os.Getgid())
}

// ensureMountPoint creates the mount-point directory, parents included, when
// it does not already exist.
func ensureMountPoint(path string) error {
	return os.MkdirAll(path, 0o755)
}
