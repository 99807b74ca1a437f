package mailer

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Call-to-action syntax: [!button|Label](https://example.com).
// Label and URL may contain backslash-escaped punctuation.
const buttonOpen = "[!button|"

// KindButton is the AST node kind of a call-to-action button.
var KindButton = ast.NewNodeKind("Button")

// ButtonNode is a call-to-action link rendered as a styled anchor.
type ButtonNode struct {
	ast.BaseInline
	Label []byte
	URL   []byte
}

func (n *ButtonNode) Kind() ast.NodeKind { return KindButton }

func (n *ButtonNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Label": string(n.Label),
		"URL":   string(n.URL),
	}, nil)
}

type buttonParser struct{}

func (buttonParser) Trigger() []byte { return []byte{'['} }

func (buttonParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if !bytes.HasPrefix(line, []byte(buttonOpen)) {
		return nil
	}

	labelEnd := scanUnescaped(line, len(buttonOpen), ']')
	if labelEnd < 0 || labelEnd+1 >= len(line) || line[labelEnd+1] != '(' {
		return nil
	}
	urlEnd := scanUnescaped(line, labelEnd+2, ')')
	if urlEnd < 0 {
		return nil
	}

	node := &ButtonNode{
		Label: util.UnescapePunctuations(line[len(buttonOpen):labelEnd]),
		URL:   util.UnescapePunctuations(line[labelEnd+2 : urlEnd]),
	}
	block.Advance(urlEnd + 1)
	return node
}

// scanUnescaped returns the index of the first c at or after from that is
// not preceded by a backslash, or -1.
func scanUnescaped(line []byte, from int, c byte) int {
	for i := from; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case c:
			return i
		}
	}
	return -1
}

type buttonRenderer struct{}

func (buttonRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindButton, renderButton)
}

func renderButton(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	n := node.(*ButtonNode)
	href := n.URL
	if html.IsDangerousURL(href) {
		href = []byte("#")
	}

	_, _ = w.WriteString(`<a href="`)
	_, _ = w.Write(util.EscapeHTML(util.URLEscape(href, true)))
	_, _ = w.WriteString(`" class="button">`)
	_, _ = w.Write(util.EscapeHTML(n.Label))
	_, _ = w.WriteString(`</a>`)
	return ast.WalkContinue, nil
}

// ButtonExtension adds call-to-action buttons to goldmark.
type ButtonExtension struct{}

// NewButtonExtension returns the button extension.
func NewButtonExtension() goldmark.Extender {
	return &ButtonExtension{}
}

func (e *ButtonExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(buttonParser{}, 50),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(buttonRenderer{}, 50),
	))
}

var (
	buttonText  = regexp.MustCompile(`\[!button\|([^\]]*)\]\(([^)]*)\)`)
	headingMark = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
)

// plainMarkdown rewrites a template body for the plain-text pass: buttons
// become "Label: URL" and heading and strong markers are dropped.
// It runs on template source, so interpolated values are never altered.
func plainMarkdown(s string) string {
	s = buttonText.ReplaceAllString(s, "$1: $2")
	s = headingMark.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, "**", "")
}
