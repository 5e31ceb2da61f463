package mount

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfskit/vfskit/internal/memfs"
	"github.com/vfskit/vfskit/pkg/errors"
)

func TestLifecycleTransitions(t *testing.T) {
	var l lifecycle

	assert.False(t, l.isMounted())
	require.NoError(t, l.beginMount("/mnt/x"))

	// A second mount attempt during mounting is refused.
	err := l.beginMount("/mnt/x")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAlreadyMounted, errors.CodeOf(err))

	l.completeMount(true)
	assert.True(t, l.isMounted())

	err = l.beginMount("/mnt/x")
	assert.Equal(t, errors.ErrCodeAlreadyMounted, errors.CodeOf(err))

	require.True(t, l.beginUnmount())
	assert.False(t, l.beginUnmount())
	l.completeUnmount(true)
	assert.False(t, l.isMounted())

	// The full cycle can run again.
	require.NoError(t, l.beginMount("/mnt/x"))
	l.completeMount(true)
	assert.True(t, l.isMounted())
}

func TestLifecycleMountFailureRollsBack(t *testing.T) {
	var l lifecycle

	require.NoError(t, l.beginMount("/mnt/x"))
	l.completeMount(false)
	assert.False(t, l.isMounted())
	assert.NoError(t, l.beginMount("/mnt/x"))
}

func TestLifecycleUnmountFailureRestoresMounted(t *testing.T) {
	var l lifecycle

	require.NoError(t, l.beginMount("/mnt/x"))
	l.completeMount(true)
	require.True(t, l.beginUnmount())
	l.completeUnmount(false)
	assert.True(t, l.isMounted())
}

func TestLifecycleConcurrentMountClaims(t *testing.T) {
	var l lifecycle
	var wg sync.WaitGroup
	winners := make(chan struct{}, 16)

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.beginMount("/mnt/x") == nil {
				winners <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestUnmountWhenUnmountedIsNoop(t *testing.T) {
	var l lifecycle
	assert.False(t, l.beginUnmount())
}

func TestNewRejectsEmptyMountPoint(t *testing.T) {
	_, err := New(memfs.New(), "", nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidOptions, errors.CodeOf(err))
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	opts := &MountOptions{CacheTimeout: -time.Second}
	_, err := New(memfs.New(), "/mnt/x", opts)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidOptions, errors.CodeOf(err))
}

func TestDetectCapabilitiesIsStable(t *testing.T) {
	a := DetectCapabilities()
	b := DetectCapabilities()
	assert.Equal(t, a, b)
}
