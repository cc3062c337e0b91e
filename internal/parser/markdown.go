package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// markdownPages renders markdown to plain text. Thematic breaks (---) start a
// new page.
func markdownPages(data []byte) ([]string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(data))

	var (
		pages []string
		page  strings.Builder
	)
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.ThematicBreak:
			if entering {
				pages = append(pages, page.String())
				page.Reset()
			}
		case *ast.Text:
			if entering {
				page.Write(node.Segment.Value(data))
				if node.SoftLineBreak() || node.HardLineBreak() {
					page.WriteString(" ")
				}
			}
		case *ast.String:
			if entering {
				page.Write(node.Value)
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					page.Write(seg.Value(data))
				}
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				page.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	pages = append(pages, page.String())
	return pages, nil
}
