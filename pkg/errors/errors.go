// Package errors provides the structured error system for vfskit. Every
// failure that crosses a package boundary carries an ErrorCode; the mount
// adapters translate codes into the numeric errno values their native driver
// protocol expects, so nothing backend-specific ever reaches the kernel.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a failure class. The filesystem codes map 1:1 onto
// the POSIX errno vocabulary the kernel driver protocols understand.
type ErrorCode string

const (
	// Filesystem errors surfaced through the mounted filesystem itself.
	ErrCodeFileNotFound ErrorCode = "FILE_NOT_FOUND"       // ENOENT
	ErrCodeFileExists   ErrorCode = "FILE_EXISTS"          // EEXIST
	ErrCodeIsDirectory  ErrorCode = "IS_DIRECTORY"         // EISDIR
	ErrCodeNotDirectory ErrorCode = "NOT_DIRECTORY"        // ENOTDIR
	ErrCodeNotEmpty     ErrorCode = "NOT_EMPTY"            // ENOTEMPTY
	ErrCodeReadOnly     ErrorCode = "READ_ONLY_FILESYSTEM" // EROFS
	ErrCodeIO           ErrorCode = "IO_ERROR"             // EIO

	// Mount lifecycle errors reported to the caller of the mount API,
	// never through the mounted filesystem.
	ErrCodeMountFailed          ErrorCode = "MOUNT_FAILED"
	ErrCodeUnmountFailed        ErrorCode = "UNMOUNT_FAILED"
	ErrCodeAlreadyMounted       ErrorCode = "ALREADY_MOUNTED"
	ErrCodePlatformNotSupported ErrorCode = "PLATFORM_NOT_SUPPORTED"
	ErrCodeInvalidOptions       ErrorCode = "INVALID_OPTIONS"
)

// ErrorCategory groups codes for logging and metrics labels.
type ErrorCategory string

const (
	CategoryFilesystem ErrorCategory = "filesystem"
	CategoryMount      ErrorCategory = "mount"
	CategoryInternal   ErrorCategory = "internal"
)

// Error is the structured error type used throughout vfskit.
type Error struct {
	Code     ErrorCode
	Category ErrorCategory
	Message  string
	Path     string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches two vfskit errors by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with its category derived from the code.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Category: GetCategory(code),
		Message:  message,
	}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// WithPath records the VFS path the failure relates to.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// GetCategory derives the category for a code.
func GetCategory(code ErrorCode) ErrorCategory {
	switch code {
	case ErrCodeFileNotFound, ErrCodeFileExists, ErrCodeIsDirectory,
		ErrCodeNotDirectory, ErrCodeNotEmpty, ErrCodeReadOnly, ErrCodeIO:
		return CategoryFilesystem
	case ErrCodeMountFailed, ErrCodeUnmountFailed, ErrCodeAlreadyMounted,
		ErrCodePlatformNotSupported, ErrCodeInvalidOptions:
		return CategoryMount
	default:
		return CategoryInternal
	}
}

// CodeOf walks the error chain and returns the code of the first vfskit
// Error found, or ErrCodeIO when the chain contains none. The IO fallback is
// what coerces unclassified backend failures into the fixed errno vocabulary.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeIO
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return code == ErrCodeIO
}
