package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristic_NeedsRender(t *testing.T) {
	t.Parallel()

	article := "<html><body><article>" + strings.Repeat("Server rendered text. ", 20) +
		"</article><script>var a=1;</script></body></html>"

	tests := []struct {
		name string
		body string
		want bool
	}{
		{"blank body", "  \n ", true},
		{"empty next mount", `<html><body><div id="__next"></div></body></html>`, true},
		{"empty react root", `<div id="root">  </div><script src="/bundle.js"></script>`, true},
		{"script heavy shell", `<html><script>var a=1;</script><p>t</p></html>`, true},
		{"filled mount", `<html><body><div id="app"><p>Hello there</p></div></body></html>`, false},
		{"plain page", `<html><body><h1>Title</h1><p>Body copy</p></body></html>`, false},
		{"text outweighs scripts", article, false},
	}
	h := NewHeuristic(100)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, h.NeedsRender([]byte(tt.body)))
		})
	}
}

func TestNewHeuristicDefaults(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultMinTextBytes, NewHeuristic(0).MinTextBytes)
	require.Equal(t, 10, NewHeuristic(10).MinTextBytes)
}
