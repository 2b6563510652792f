package catalog

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("github"),
		),
	),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// FormatMarkdown formats the index as markdown: one section per group with
// its description and a table of documents linking to their viewer paths.
func FormatMarkdown(idx Index) string {
	if len(idx) == 0 {
		return "No documents found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# API documents\n\n%d groups, %d documents.\n\n", len(idx), idx.Count())
	for _, g := range idx {
		fmt.Fprintf(&sb, "## %s\n\n", escapeCell(g.Name))
		if g.Description != "" {
			sb.WriteString(strings.TrimSpace(g.Description))
			sb.WriteString("\n\n")
		}
		sb.WriteString("| Document | Viewer | Source |\n")
		sb.WriteString("|----------|--------|--------|\n")
		for _, d := range g.Documents {
			fmt.Fprintf(&sb, "| %s | [%s](%s) | <%s> |\n",
				escapeCell(d.Name), escapeLinkText(Key(g.ID, d.ID)), ViewerPath(g.ID, d.ID), d.URL)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderOverview renders FormatMarkdown's output to HTML. Fenced code in group
// descriptions is highlighted; raw HTML is not rendered.
func RenderOverview(idx Index) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(FormatMarkdown(idx)), &buf); err != nil {
		return "", fmt.Errorf("rendering overview: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var linkTextEscaper = strings.NewReplacer("|", `\|`, "[", `\[`, "]", `\]`)

func escapeLinkText(s string) string {
	return linkTextEscaper.Replace(s)
}
