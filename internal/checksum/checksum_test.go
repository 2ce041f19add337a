package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdler32(t *testing.T) {
	// Known value: adler32("Wikipedia") = 0x11E60398.
	sum, err := Adler32(strings.NewReader("Wikipedia"))
	require.NoError(t, err)
	assert.Equal(t, "11e60398", sum)
}

func TestFileAdler32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.root")
	require.NoError(t, os.WriteFile(path, []byte("Wikipedia"), 0644))

	sum, err := FileAdler32(path)
	require.NoError(t, err)
	assert.Equal(t, "11e60398", sum)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"11e60398", "11e60398", true},
		{"11E60398", "11e60398", true},
		{"011e60398", "11e60398", true},
		{"0001", "1", true},
		{"11e60398", "deadbeef", false},
		{"", "0", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Equal(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
