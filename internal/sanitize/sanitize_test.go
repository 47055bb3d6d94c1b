package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComment(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "played with Max and Luna", want: "played with Max and Luna"},
		{name: "whitespace", in: "  played\n\twith   Max ", want: "played with Max"},
		{name: "empty", in: "   ", want: ""},
		{name: "html", in: "<p>Played with <b>Max</b>!</p><br><p>Napped</p>", want: "Played with Max ! Napped"},
		{name: "entities", in: "Max &amp; Luna", want: "Max & Luna"},
		{name: "script dropped", in: "<script>alert(1)</script>Luna", want: "Luna"},
		{name: "lone ampersand", in: "Max & Luna", want: "Max & Luna"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Comment(tt.in))
		})
	}
}

func TestBlank(t *testing.T) {
	assert.True(t, Blank(""))
	assert.True(t, Blank(" \n\t "))
	assert.True(t, Blank("<p> </p><br/>"))
	assert.False(t, Blank("Max"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Pool time", Label("  Pool time \n"))
	assert.Equal(t, "Pool  time", Label("Pool  time"))
}
