package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{name: "trim and lower", input: []string{"Go", "go", "  RUST "}, want: []string{"go", "rust"}},
		{name: "drop empty", input: []string{"", "   ", "news"}, want: []string{"news"}},
		{name: "keep first occurrence order", input: []string{"b", "A", "a", "B"}, want: []string{"b", "a"}},
		{name: "unicode", input: []string{"ÉCOLE", "école"}, want: []string{"école"}},
		{name: "nil", input: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"news", "go", "databases"}, ParseTags("News, go,,databases ,GO"))
	assert.Equal(t, []string{}, ParseTags(""))
	assert.Equal(t, []string{"single"}, ParseTags("single"))
}

func TestDifference(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, difference([]string{"a", "b", "c"}, []string{"b"}))
	assert.Equal(t, []string{}, difference([]string{"a"}, []string{"a"}))
	assert.Equal(t, []string{}, difference(nil, []string{"a"}))
}
