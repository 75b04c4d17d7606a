package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"Hello, World!", "Hello, World!"},
		{"Tom & Jerry", "Tom &amp; Jerry"},
		{`say "hi"`, "say &quot;hi&quot;"},
		{"<script>alert('x')</script>", "&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;"},
		{"&amp;", "&amp;amp;"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeHTML(tt.in), tt.in)
	}
}

func TestEscapeAttr(t *testing.T) {
	assert.Equal(t, "a&#10;b&#9;c&#13;", escapeAttr("a\nb\tc\r"))
	assert.Equal(t, "x&quot; onload=&quot;y", escapeAttr(`x" onload="y`))
}

func TestEscapeScript(t *testing.T) {
	assert.Equal(t, `{"a":"\u003c/script\u003e"}`, escapeScript(`{"a":"</script>"}`))
	assert.Equal(t, `\u2028`, escapeScript("\u2028"))
}
