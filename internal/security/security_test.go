package security

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCaptureRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"simple name", "frame100.json", false},
		{"subdirectory", "captures/frame100.json", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 513), true},
		{"nul byte", "frame\x00.json", true},
		{"absolute", "/etc/passwd", true},
		{"parent escape", "../secrets.json", true},
		{"hidden escape", "captures/../../secrets.json", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCaptureRef(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveCaptureRef(t *testing.T) {
	path, err := ResolveCaptureRef("/var/dumps", "frame100.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/dumps", "frame100.json"), path)

	_, err = ResolveCaptureRef("/var/dumps", "../frame100.json")
	assert.Error(t, err)
}
