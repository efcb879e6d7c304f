package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestString(t *testing.T) {
	info := BuildInfo{
		Version:   "1.2.3",
		Commit:    "abc1234",
		Date:      "2026-01-15T00:00:00Z",
		GoVersion: "go1.25.5",
		OS:        "linux",
		Arch:      "amd64",
	}

	assert.Equal(t, "recall 1.2.3 (commit abc1234, built 2026-01-15T00:00:00Z, go1.25.5 linux/amd64)", info.String())
}
