package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFunctions(t *testing.T) {
	DisableColors()
	defer EnableColors()

	tests := map[string]struct {
		fn   func(string) string
		msg  string
		want string
	}{
		"success bare":     {StatusSuccess, "", SymbolSuccess},
		"success with msg": {StatusSuccess, "Reverted", SymbolSuccess + " Reverted"},
		"error with msg":   {StatusError, "guide.md", SymbolError + " guide.md"},
		"warning with msg": {StatusWarning, "Warning:", SymbolWarning + " Warning:"},
		"skipped bare":     {StatusSkipped, "", SymbolSkipped},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn(tt.msg))
		})
	}
}

func TestPaletteIsPlainWithoutColors(t *testing.T) {
	DisableColors()
	defer EnableColors()

	for name, paint := range map[string]func(...any) string{
		"success": Success, "error": Error, "warning": Warning, "info": Info,
		"bold": Bold, "dim": Dim, "header": Header,
	} {
		assert.Equal(t, "v3", paint("v3"), name)
	}
}

func TestColorToggle(t *testing.T) {
	initial := IsColorEnabled()
	defer func() {
		if initial {
			EnableColors()
		} else {
			DisableColors()
		}
	}()

	DisableColors()
	assert.False(t, IsColorEnabled())
	EnableColors()
	assert.True(t, IsColorEnabled())
}
