package pathcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegments(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/", nil},
		{"src", []string{"src"}},
		{"src/app", []string{"src", "app"}},
		{"/src//app/", []string{"src", "app"}},
		{"//a///b//c//", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Segments(tt.in), "Segments(%q)", tt.in)
	}
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, Depth(""))
	assert.Equal(t, 0, Depth("///"))
	assert.Equal(t, 1, Depth("src"))
	assert.Equal(t, 3, Depth("/a/b//c/"))
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"src", ""},
		{"/src/", ""},
		{"src/app", "src"},
		{"a//b/c/", "a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParentPath(tt.in), "ParentPath(%q)", tt.in)
	}
}

func TestBase(t *testing.T) {
	assert.Equal(t, "", Base(""))
	assert.Equal(t, "src", Base("src"))
	assert.Equal(t, "app", Base("src/app/"))
}

func TestJoinAndClean(t *testing.T) {
	assert.Equal(t, "", Join())
	assert.Equal(t, "main.py", Join("", "main.py"))
	assert.Equal(t, "src/app/main.py", Join("/src/", "app", "/main.py"))
	assert.Equal(t, "a/b", Clean("//a//b/"))
}

func TestSplit(t *testing.T) {
	path, name := Split("src/app/main.py")
	assert.Equal(t, "src/app", path)
	assert.Equal(t, "main.py", name)

	path, name = Split("README.md")
	assert.Equal(t, "", path)
	assert.Equal(t, "README.md", name)

	path, name = Split(Join("src", "x"))
	assert.Equal(t, "src", path)
	assert.Equal(t, "x", name)
}
