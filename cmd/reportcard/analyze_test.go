package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "friend...", truncate("friends: timeout", 9))

	got := truncate("Lunë était là aujourd'hui", 8)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Lunë ...", got)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0f9c2d1a", shortID("0f9c2d1a-5b7e-4c1d-9a2b-3c4d5e6f7a8b"))
	assert.Equal(t, "abc", shortID("abc"))
}
