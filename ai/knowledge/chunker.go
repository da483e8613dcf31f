// Package knowledge builds and queries the knowledge graph used to ground
// answers: chunking and embedding documents, extracting entities and
// relations, and retrieving context bundles for a query.
package knowledge

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the rune overlap between adjacent chunks.
	DefaultChunkOverlap = 200
)

// Chunk is one contiguous span of a document.
type Chunk struct {
	Index   int
	Content string
}

// SplitRunes splits text into chunks of at most size runes with the given
// overlap. Whitespace-only chunks are dropped.
func SplitRunes(content string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}

	runes := []rune(content)
	chunks := []Chunk{}
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Content: piece})
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// FlattenMarkdown strips markdown structure down to plain text, one line
// per block, so chunk boundaries do not split on syntax.
func FlattenMarkdown(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			switch node := n.(type) {
			case *ast.Text:
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte(' ')
				}
			case *ast.AutoLink:
				buf.Write(node.URL(source))
			case *ast.FencedCodeBlock, *ast.CodeBlock:
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					segment := lines.At(i)
					buf.Write(segment.Value(source))
				}
			}
			return ast.WalkContinue, nil
		}
		// Block boundaries become newlines.
		if n.Type() == ast.TypeBlock {
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}
