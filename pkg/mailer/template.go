package mailer

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML header of an email template.
type FrontMatter struct {
	Subject string `yaml:"subject"`
	Heading string `yaml:"heading"`
	Tagline string `yaml:"tagline"`
}

// Template is a parsed template file: front matter plus markdown body.
type Template struct {
	Meta FrontMatter
	Body string
}

var fence = []byte("---")

// ParseTemplate splits content into YAML front matter and body.
// Content without a leading "---" is treated as body only.
func ParseTemplate(content []byte) (*Template, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(content, fence) {
		return &Template{Body: string(content)}, nil
	}

	rest := bytes.TrimLeft(content[len(fence):], "\n")
	if len(rest) == 0 {
		return nil, fmt.Errorf("%w: no content after opening delimiter", ErrInvalidFrontmatter)
	}

	end := bytes.Index(rest, fence)
	if end < 0 {
		return nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	t := &Template{Body: string(bytes.TrimPrefix(rest[end+len(fence):], []byte("\n")))}
	if head := bytes.TrimSpace(rest[:end]); len(head) > 0 {
		if err := yaml.Unmarshal(head, &t.Meta); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}
	return t, nil
}
