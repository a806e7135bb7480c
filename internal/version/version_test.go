package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		version string
		target  string
		want    bool
	}{
		{"0.1.0", "0.1.0", true},
		{"0.2.0", "0.1.9", true},
		{"0.1.0", "0.10.0", false},
		{"1.0.0-dev", "1.0.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.version+">="+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, IsVersionGreaterOrEqualThan(tt.version, tt.target))
		})
	}
}

func TestGetCurrentVersion(t *testing.T) {
	assert.Equal(t, Version+"-dev", GetCurrentVersion("dev"))
	assert.Equal(t, Version, GetCurrentVersion("prod"))
	assert.True(t, IsValid(Version))
	assert.Contains(t, String(), Version)
}
