package highlight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	out, err := Code("package main\n\nfunc main() {}\n", "go")
	require.NoError(t, err)
	assert.Contains(t, out, "<span")
	assert.Contains(t, out, "func")
	assert.NotContains(t, out, "<pre")
}

func TestCodeUnknownLanguageFallsBack(t *testing.T) {
	out, err := Code("<b>x</b>", "no-such-language")
	require.NoError(t, err)
	assert.Contains(t, out, "&lt;b&gt;")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, DefaultLanguage, Normalize("  "))
	assert.Equal(t, "go", Normalize(" Go "))
}

func TestStylesheet(t *testing.T) {
	css, err := Stylesheet("does-not-exist")
	require.NoError(t, err)
	assert.NotEmpty(t, css)
	assert.True(t, Known("python"))
}
