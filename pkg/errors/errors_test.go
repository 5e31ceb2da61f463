package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeFileNotFound, "no such file or directory").WithPath("/a/b")
	assert.Equal(t, "FILE_NOT_FOUND: /a/b: no such file or directory", err.Error())

	bare := New(ErrCodeMountFailed, "mount failed")
	assert.Equal(t, "MOUNT_FAILED: mount failed", bare.Error())
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New(ErrCodeFileExists, "file exists").WithPath("/x")
	b := New(ErrCodeFileExists, "different message")
	c := New(ErrCodeFileNotFound, "file exists")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("backend exploded")
	err := New(ErrCodeIO, "backend operation failed").WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeReadOnly, CodeOf(New(ErrCodeReadOnly, "ro")))

	wrapped := fmt.Errorf("context: %w", New(ErrCodeNotEmpty, "not empty"))
	assert.Equal(t, ErrCodeNotEmpty, CodeOf(wrapped))

	// Unclassified errors coerce to the generic IO code.
	assert.Equal(t, ErrCodeIO, CodeOf(fmt.Errorf("some raw provider error")))
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(New(ErrCodeIsDirectory, "is a directory"), ErrCodeIsDirectory))
	assert.False(t, HasCode(New(ErrCodeIsDirectory, "is a directory"), ErrCodeNotDirectory))
	assert.False(t, HasCode(nil, ErrCodeIO))
	assert.True(t, HasCode(fmt.Errorf("raw"), ErrCodeIO))
}

func TestGetCategory(t *testing.T) {
	assert.Equal(t, CategoryFilesystem, GetCategory(ErrCodeFileNotFound))
	assert.Equal(t, CategoryFilesystem, GetCategory(ErrCodeReadOnly))
	assert.Equal(t, CategoryMount, GetCategory(ErrCodeAlreadyMounted))
	assert.Equal(t, CategoryMount, GetCategory(ErrCodePlatformNotSupported))
	assert.Equal(t, CategoryInternal, GetCategory(ErrorCode("SOMETHING_ELSE")))
}

func TestNewfFormats(t *testing.T) {
	err := Newf(ErrCodeAlreadyMounted, "already mounted at %s", "/mnt/x")
	assert.Equal(t, "ALREADY_MOUNTED: already mounted at /mnt/x", err.Error())
	assert.Equal(t, CategoryMount, err.Category)
}
