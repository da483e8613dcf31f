package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitRunes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		size    int
		overlap int
		want    int
	}{
		{"empty", "", 10, 2, 0},
		{"single chunk", "hello world", 100, 20, 1},
		{"exact size", strings.Repeat("a", 10), 10, 2, 1},
		{"two chunks with overlap", strings.Repeat("a", 15), 10, 2, 2},
		{"defaults applied", strings.Repeat("b", 1500), 0, -1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitRunes(tt.content, tt.size, tt.overlap)
			require.Len(t, chunks, tt.want)
			for i, chunk := range chunks {
				require.Equal(t, i, chunk.Index)
				require.NotEmpty(t, chunk.Content)
			}
		})
	}
}

func TestSplitRunesOverlapContent(t *testing.T) {
	content := "abcdefghij"
	chunks := SplitRunes(content, 6, 2)

	require.Len(t, chunks, 2)
	require.Equal(t, "abcdef", chunks[0].Content)
	require.Equal(t, "efghij", chunks[1].Content)
}

func TestSplitRunesMultibyte(t *testing.T) {
	content := strings.Repeat("日本語テキスト", 3)
	chunks := SplitRunes(content, 10, 2)

	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk.Content)), 10)
	}
}

func TestFlattenMarkdown(t *testing.T) {
	source := []byte("# Services\n\nWe offer **consultations** and demos.\n\n- item one\n- item two\n\n[pricing](https://example.com/pricing)")
	flat := FlattenMarkdown(source)

	require.Contains(t, flat, "Services")
	require.Contains(t, flat, "We offer consultations and demos.")
	require.Contains(t, flat, "item one")
	require.Contains(t, flat, "pricing")
	require.NotContains(t, flat, "#")
	require.NotContains(t, flat, "**")
	require.NotContains(t, flat, "](")
}
