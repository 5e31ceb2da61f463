package mount

import (
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.ReadOnly {
		t.Error("Expected ReadOnly to be false by default")
	}
	if opts.CacheTimeout != time.Second {
		t.Errorf("Expected CacheTimeout to be 1s, got %v", opts.CacheTimeout)
	}
	if opts.MaxRead != 128*1024 {
		t.Errorf("Expected MaxRead to be 128KB, got %d", opts.MaxRead)
	}
	if opts.MaxWrite != 128*1024 {
		t.Errorf("Expected MaxWrite to be 128KB, got %d", opts.MaxWrite)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("Expected default options to validate, got %v", err)
	}
}

func TestValidateRejectsNegatives(t *testing.T) {
	cases := []struct {
		name string
		opts MountOptions
	}{
		{"negative cache timeout", MountOptions{CacheTimeout: -time.Second}},
		{"negative max read", MountOptions{MaxRead: -1}},
		{"negative max write", MountOptions{MaxWrite: -1}},
	}
	for _, tc := range cases {
		if err := tc.opts.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestStatInfoIsDir(t *testing.T) {
	dir := StatInfo{Mode: modeDir}
	if !dir.IsDir() {
		t.Error("Expected directory mode to report IsDir")
	}

	file := StatInfo{Mode: modeFile}
	if file.IsDir() {
		t.Error("Expected file mode to not report IsDir")
	}
}

func TestStatInfoBlocks(t *testing.T) {
	cases := []struct {
		size   int64
		blocks int64
	}{
		{0, 0},
		{1, 1},
		{512, 1},
		{513, 2},
		{4096, 8},
	}
	for _, tc := range cases {
		st := StatInfo{Size: tc.size}
		if got := st.Blocks(); got != tc.blocks {
			t.Errorf("Blocks() for size %d = %d, want %d", tc.size, got, tc.blocks)
		}
	}
}
