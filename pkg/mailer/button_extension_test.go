package mailer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
)

func convertButtons(t *testing.T, src string) string {
	t.Helper()

	md := goldmark.New(goldmark.WithExtensions(NewButtonExtension()))
	var buf bytes.Buffer
	require.NoError(t, md.Convert([]byte(src), &buf))
	return buf.String()
}

func TestButtonExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		src      string
		contains []string
		excludes []string
	}{
		{
			name:     "renders anchor",
			src:      "[!button|Verify](https://example.com/verify)",
			contains: []string{`<a href="https://example.com/verify" class="button">Verify</a>`},
		},
		{
			name:     "keeps query string",
			src:      "[!button|Go](https://example.com/v?token=abc&id=1)",
			contains: []string{`href="https://example.com/v?token=abc&amp;id=1"`},
		},
		{
			name:     "escapes label",
			src:      "[!button|<b>x</b>](https://example.com)",
			contains: []string{`>&lt;b&gt;x&lt;/b&gt;</a>`},
		},
		{
			name:     "unescapes backslash escapes",
			src:      `[!button|Open](https://example\.com/a\_b)`,
			contains: []string{`href="https://example.com/a_b"`},
		},
		{
			name:     "escaped parenthesis stays in url",
			src:      `[!button|Open](https://example.com/x\)y)`,
			contains: []string{`href="https://example.com/x`, `class="button">Open</a>`},
		},
		{
			name:     "neutralizes javascript urls",
			src:      "[!button|Click](javascript:alert(1))",
			contains: []string{`href="#"`},
			excludes: []string{"javascript:"},
		},
		{
			name:     "regular links untouched",
			src:      "[Docs](https://example.com/docs)",
			contains: []string{`<a href="https://example.com/docs">Docs</a>`},
			excludes: []string{`class="button"`},
		},
		{
			name:     "incomplete button is plain text",
			src:      "[!button|Broken](no-close",
			excludes: []string{`class="button"`},
		},
		{
			name: "multiple buttons",
			src:  "[!button|One](https://a.example) and [!button|Two](https://b.example)",
			contains: []string{
				`<a href="https://a.example" class="button">One</a>`,
				`<a href="https://b.example" class="button">Two</a>`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out := convertButtons(t, tt.src)
			for _, s := range tt.contains {
				require.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				require.NotContains(t, out, s)
			}
		})
	}
}

func TestPlainMarkdown(t *testing.T) {
	t.Parallel()

	src := "## Step 1\n\n[!button|Download]({{esc .DownloadLink}})\n\n**Note:** keep it safe"
	require.Equal(t, "Step 1\n\nDownload: {{esc .DownloadLink}}\n\nNote: keep it safe", plainMarkdown(src))
}

func TestButtonNode_Kind(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindButton, (&ButtonNode{}).Kind())
}
