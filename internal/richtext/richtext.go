package richtext

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Service renders the markdown body of text blocks and extracts the
// summary metadata pages show in block previews.
type Service struct {
	md goldmark.Markdown
}

// Summary describes the content of a rendered text block.
type Summary struct {
	HasLink    bool
	HasCode    bool
	HasHeading bool
	PlainText  string
}

func NewService() *Service {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	return &Service{md: md}
}

// Render converts a text block's markdown content to HTML.
func (s *Service) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("render text block: %w", err)
	}
	return buf.String(), nil
}

// Summarize walks the parsed document and reports its shape without
// rendering it.
func (s *Service) Summarize(content string) (Summary, error) {
	source := []byte(content)
	root := s.md.Parser().Parse(text.NewReader(source))

	var summary Summary
	var plain bytes.Buffer

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindLink, ast.KindAutoLink:
			summary.HasLink = true
		case ast.KindCodeSpan, ast.KindCodeBlock, ast.KindFencedCodeBlock:
			summary.HasCode = true
		case ast.KindHeading:
			summary.HasHeading = true
		case ast.KindText:
			if textNode, ok := n.(*ast.Text); ok {
				plain.Write(textNode.Segment.Value(source))
				if textNode.SoftLineBreak() || textNode.HardLineBreak() {
					plain.WriteByte(' ')
				}
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return Summary{}, err
	}
	summary.PlainText = plain.String()
	return summary, nil
}
