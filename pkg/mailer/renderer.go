package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"

	"github.com/yuin/goldmark"
)

// Rendered is a fully rendered email body.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Renderer turns markdown templates with YAML front matter into a subject,
// a plain-text body and an HTML body wrapped in a layout.
//
// Interpolated values must go through the esc function inside templates.
// For the HTML pass esc escapes markdown syntax; for the text pass it is a no-op.
type Renderer struct {
	fs        fs.FS
	md        goldmark.Markdown
	compiled  map[string]*compiled
	layout    *htmltemplate.Template
	layoutDir string
	layoutFn  string
	mu        sync.RWMutex
}

type compiled struct {
	subject  *template.Template
	markdown *template.Template
	plain    *template.Template
	meta     FrontMatter
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLayout selects the layout file inside the layout directory.
// Default: "base.html".
func WithLayout(name string) RendererOption {
	return func(r *Renderer) {
		if name != "" {
			r.layoutFn = name
		}
	}
}

// WithLayoutDir sets the layout directory. Default: "layouts".
func WithLayoutDir(dir string) RendererOption {
	return func(r *Renderer) {
		if dir != "" {
			r.layoutDir = dir
		}
	}
}

// NewRenderer creates a renderer reading templates from fsys.
func NewRenderer(fsys fs.FS, opts ...RendererOption) *Renderer {
	r := &Renderer{
		fs:        fsys,
		md:        goldmark.New(goldmark.WithExtensions(NewButtonExtension())),
		compiled:  make(map[string]*compiled),
		layoutDir: "layouts",
		layoutFn:  "base.html",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type layoutData struct {
	Data    any
	Content htmltemplate.HTML
	Subject string
	Heading string
	Tagline string
}

// Render executes template name (without the .md extension) with data.
// The layout receives the template data as .Data.
func (r *Renderer) Render(name string, data any) (*Rendered, error) {
	c, err := r.template(name)
	if err != nil {
		return nil, err
	}
	layout, err := r.loadLayout()
	if err != nil {
		return nil, err
	}

	subject, err := execute(c.subject, data)
	if err != nil {
		return nil, err
	}
	markdown, err := execute(c.markdown, data)
	if err != nil {
		return nil, err
	}
	plain, err := execute(c.plain, data)
	if err != nil {
		return nil, err
	}

	var content bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &content); err != nil {
		return nil, fmt.Errorf("%w: convert markdown: %v", ErrRenderFailed, err)
	}

	var out bytes.Buffer
	err = layout.Execute(&out, layoutData{
		Data:    data,
		Content: htmltemplate.HTML(content.String()),
		Subject: subject,
		Heading: c.meta.Heading,
		Tagline: c.meta.Tagline,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: execute layout: %v", ErrRenderFailed, err)
	}

	return &Rendered{
		Subject: strings.TrimSpace(subject),
		Text:    strings.TrimSpace(plain),
		HTML:    out.String(),
	}, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}

func (r *Renderer) template(name string) (*compiled, error) {
	r.mu.RLock()
	c, ok := r.compiled[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.compiled[name]; ok {
		return c, nil
	}

	raw, err := fs.ReadFile(r.fs, name+".md")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	parsed, err := ParseTemplate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRenderFailed, name, err)
	}

	c = &compiled{meta: parsed.Meta}
	if c.subject, err = template.New(name + ".subject").Funcs(plainFuncs).Parse(parsed.Meta.Subject); err != nil {
		return nil, fmt.Errorf("%w: %s subject: %v", ErrRenderFailed, name, err)
	}
	if c.markdown, err = template.New(name + ".md").Funcs(markdownFuncs).Parse(parsed.Body); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrRenderFailed, name, err)
	}
	if c.plain, err = template.New(name + ".txt").Funcs(plainFuncs).Parse(plainMarkdown(parsed.Body)); err != nil {
		return nil, fmt.Errorf("%w: %s body: %v", ErrRenderFailed, name, err)
	}

	r.compiled[name] = c
	return c, nil
}

func (r *Renderer) loadLayout() (*htmltemplate.Template, error) {
	r.mu.RLock()
	l := r.layout
	r.mu.RUnlock()
	if l != nil {
		return l, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.layout != nil {
		return r.layout, nil
	}

	raw, err := fs.ReadFile(r.fs, path.Join(r.layoutDir, r.layoutFn))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, r.layoutFn)
	}
	l, err = htmltemplate.New(r.layoutFn).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: layout: %v", ErrRenderFailed, err)
	}
	r.layout = l
	return l, nil
}

var (
	markdownFuncs = template.FuncMap{"esc": escapeMarkdown}
	plainFuncs    = template.FuncMap{"esc": func(s string) string { return s }}
)

// escapeMarkdown backslash-escapes ASCII punctuation so interpolated values
// render as literal text. Line breaks are folded to spaces.
func escapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		switch {
		case r == '\r' || r == '\n':
			b.WriteByte(' ')
		case r < 0x80 && isASCIIPunct(byte(r)):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCIIPunct(c byte) bool {
	return (c >= '!' && c <= '/') || (c >= ':' && c <= '@') ||
		(c >= '[' && c <= '`') || (c >= '{' && c <= '~')
}
