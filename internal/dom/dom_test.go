package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyle_Visible(t *testing.T) {
	tests := []struct {
		name  string
		style Style
		want  bool
	}{
		{"plain", Style{Display: "block", Visibility: "visible", Opacity: 1}, true},
		{"display none", Style{Display: "none", Visibility: "visible", Opacity: 1}, false},
		{"visibility hidden", Style{Display: "block", Visibility: "hidden", Opacity: 1}, false},
		{"transparent", Style{Display: "block", Visibility: "visible", Opacity: 0}, false},
		{"faded", Style{Display: "inline", Visibility: "visible", Opacity: 0.2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.style.Visible())
		})
	}
}

func TestViewport_Contains(t *testing.T) {
	vp := Viewport{Width: 800, Height: 600}

	assert.True(t, vp.Contains(0, 0))
	assert.True(t, vp.Contains(799, 599))
	assert.False(t, vp.Contains(800, 10))
	assert.False(t, vp.Contains(-1, 10))
	assert.False(t, vp.Contains(10, 600))
}

func TestRect_Center(t *testing.T) {
	x, y := Rect{X: 10, Y: 20, Width: 100, Height: 40}.Center()
	assert.InDelta(t, 60, x, 0.001)
	assert.InDelta(t, 40, y, 0.001)
}

func TestNode_Probes(t *testing.T) {
	n := Node{Element: true, Tag: "div", Classes: []string{"ad-showing"}, Has: []string{"video"}}

	assert.True(t, n.HasClass("ad-showing"))
	assert.False(t, n.Matches("video"))
	assert.True(t, n.Contains("video"))

	text := Node{Has: []string{"video"}}
	assert.False(t, text.Contains("video"))
}
