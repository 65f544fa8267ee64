package formatting

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"mrilo/internal/domain/models"
)

// defaultCodeLanguage labels fenced blocks that omit an info string
const defaultCodeLanguage = "typescript"

// CSS classes the chat client styles rendered replies with
const (
	classList       = "my-3 space-y-1"
	classBulletItem = "ml-4 pl-2 py-1 border-l-2 border-gray-600 mb-2"
	classNumberItem = "ml-4 pl-2 py-1 flex gap-2 mb-2"
	classStrong     = "font-bold text-white"
	classEmphasis   = "text-blue-300 not-italic"
	classParagraph  = "my-3"
)

// headingClass mirrors the client's sizing: smaller text for deeper headings.
func headingClass(level int) string {
	size := 5 - level
	if size < 0 {
		size = 0
	}
	return fmt.Sprintf("font-bold text-%dpx mt-4 mb-2", size+12)
}

// chatClassTransformer tags AST nodes with the chat's CSS classes before rendering
type chatClassTransformer struct{}

func (chatClassTransformer) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			node.SetAttributeString("class", []byte(headingClass(node.Level)))
		case *ast.List:
			node.SetAttributeString("class", []byte(classList))
		case *ast.ListItem:
			if list, ok := node.Parent().(*ast.List); ok && list.IsOrdered() {
				node.SetAttributeString("class", []byte(classNumberItem))
			} else {
				node.SetAttributeString("class", []byte(classBulletItem))
			}
		case *ast.Emphasis:
			if node.Level >= 2 {
				node.SetAttributeString("class", []byte(classStrong))
			} else {
				node.SetAttributeString("class", []byte(classEmphasis))
			}
		case *ast.Paragraph:
			node.SetAttributeString("class", []byte(classParagraph))
		}
		return ast.WalkContinue, nil
	})
}

// Renderer turns reply Markdown into sanitized HTML fragments.
// Safe for concurrent use.
type Renderer struct {
	md        goldmark.Markdown
	sanitizer *HTMLSanitizer
}

// NewRenderer creates a renderer using the chat class scheme
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithASTTransformers(util.Prioritized(chatClassTransformer{}, 100)),
		),
	)
	return &Renderer{md: md, sanitizer: NewHTMLSanitizer()}
}

// Render parses text into an AST, renders it, and sanitizes the result.
// The same input always yields the same output.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out, err := r.sanitizer.Sanitize(buf.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

var defaultRenderer = NewRenderer()

// RenderMarkdown renders with the package default Renderer
func RenderMarkdown(source string) (string, error) {
	return defaultRenderer.Render(source)
}

// ExtractCodeBlocks returns every fenced code block in text in document order.
// Blocks without a language are labelled typescript; code is trimmed.
func ExtractCodeBlocks(source string) []models.CodeBlock {
	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var blocks []models.CodeBlock
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		lang := string(fenced.Language(src))
		if lang == "" {
			lang = defaultCodeLanguage
		}

		var code strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(src))
		}

		blocks = append(blocks, models.CodeBlock{
			Language: lang,
			Code:     strings.TrimSpace(code.String()),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
