package shellquote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"/store/data/file.root", "/store/data/file.root"},
		{"--srm=srm://se.example:8446/srm/v2?SFN=/store", `'--srm=srm://se.example:8446/srm/v2?SFN=/store'`},
		{"with space", `'with space'`},
		{"it's", `'it'\''s'`},
		{"", "''"},
		{"$HOME", `'$HOME'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), "input: %q", tt.in)
	}
}

func TestJoin(t *testing.T) {
	got := Join("gridsync", "-j", "5", "--dest", "/data/top nano")
	assert.Equal(t, `gridsync -j 5 --dest '/data/top nano'`, got)
}
