package mount

import (
	"time"

	"github.com/vfskit/vfskit/pkg/errors"
)

// MountOptions configures a mount. The record is created once per mount and
// never mutated afterwards; every driver callback observes the same values.
type MountOptions struct {
	// ReadOnly rejects all mutating verbs with READ_ONLY_FILESYSTEM.
	ReadOnly bool

	// AllowOther permits access by users other than the mount owner. Passed
	// through to the native driver's access-control option.
	AllowOther bool

	// Debug enables the native driver's protocol logging.
	Debug bool

	// CacheTimeout is the attribute/entry cache validity handed to the
	// kernel driver.
	CacheTimeout time.Duration

	// MaxRead and MaxWrite bound the driver's transfer buffer sizes.
	MaxRead  int
	MaxWrite int

	// Extra holds backend- or driver-specific options the fixed fields do
	// not cover.
	Extra map[string]string
}

// DefaultOptions returns the options used when the caller passes nil.
func DefaultOptions() *MountOptions {
	return &MountOptions{
		CacheTimeout: time.Second,
		MaxRead:      128 * 1024,
		MaxWrite:     128 * 1024,
	}
}

// Validate checks the numeric fields. Construction itself never fails;
// validation happens once, when the dispatcher builds an adapter.
func (o *MountOptions) Validate() error {
	if o.CacheTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "cache_timeout must be non-negative")
	}
	if o.MaxRead < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "max_read must be non-negative")
	}
	if o.MaxWrite < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "max_write must be non-negative")
	}
	return nil
}

// File type bits used by the bridge. Values are the POSIX S_IFDIR/S_IFREG
// constants, kept literal here so the package builds on every platform.
const (
	modeTypeMask = 0o170000
	modeDir      = 0o040000 | 0o755
	modeFile     = 0o100000 | 0o644
)

// dirSize is the synthetic byte size reported for directories.
const dirSize = 4096

// StatInfo is the POSIX-stat-equivalent record produced by the bridge and
// consumed by every driver adapter. Conversion to a driver's native stat
// representation is total: any well-formed StatInfo converts without error.
type StatInfo struct {
	Mode  uint32 // file type and permission bits
	Ino   uint64
	Dev   uint64
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// IsDir reports whether the mode's type bits mark a directory.
func (s StatInfo) IsDir() bool {
	return s.Mode&modeTypeMask == modeDir&modeTypeMask
}

// Blocks returns the 512-byte block count drivers expect.
func (s StatInfo) Blocks() int64 {
	return (s.Size + 511) / 512
}
