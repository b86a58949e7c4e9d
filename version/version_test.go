package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, "dev (none)", Info{Version: "dev", Commit: "none"}.Short())
	assert.Equal(t, "v1.2.0 (0123456)", Info{Version: "v1.2.0", Commit: "0123456789abcdef"}.Short())
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.String(), "Platform:")
}
