package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/philoview/pkg/model"
)

// MarkdownOptions controls GenerateMarkdown.
type MarkdownOptions struct {
	Title string
	// BaseURL turns every school into a link to its page; empty means
	// plain names.
	BaseURL string
	// Diagram adds a mermaid graph of the hierarchy.
	Diagram bool
	Now     func() time.Time
}

// GenerateMarkdown renders the outline as a nested markdown list.
func GenerateMarkdown(o Outline, opts MarkdownOptions) string {
	if opts.Title == "" {
		opts.Title = "Schools"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	base := strings.TrimRight(opts.BaseURL, "/")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", opts.Title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", opts.Now().Format(time.RFC1123)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Schools**: %d\n", len(o.Entries)))
	sb.WriteString(fmt.Sprintf("- **Top level**: %d\n", o.Roots))
	sb.WriteString(fmt.Sprintf("- **Depth**: %d\n", depthOf(o)))
	if o.Unloaded > 0 {
		sb.WriteString(fmt.Sprintf("- **Not loaded**: %d\n", o.Unloaded))
	}
	sb.WriteString("\n")

	sb.WriteString("## Outline\n\n")
	if len(o.Entries) == 0 {
		sb.WriteString("_No schools._\n\n")
	}
	for _, e := range o.Entries {
		sb.WriteString(strings.Repeat("  ", e.Depth))
		sb.WriteString("- ")
		name := escapeMarkdown(e.Name)
		if base != "" {
			sb.WriteString(fmt.Sprintf("[%s](%s%s)", name, base, model.SchoolViewPath(e.ID)))
		} else {
			sb.WriteString(name)
		}
		if e.HasChildren && !e.Loaded {
			sb.WriteString(" _(not loaded)_")
		}
		sb.WriteString("\n")
	}

	if opts.Diagram && len(o.Entries) > 0 {
		sb.WriteString("\n## Diagram\n\n")
		sb.WriteString("```mermaid\ngraph TD\n")
		for _, e := range o.Entries {
			sb.WriteString(fmt.Sprintf("    s%s[\"%s\"]\n", e.ID, mermaidLabel(e.Name)))
		}
		for _, e := range o.Entries {
			if e.Parent >= 0 {
				sb.WriteString(fmt.Sprintf("    s%s --> s%s\n", o.Entries[e.Parent].ID, e.ID))
			}
		}
		sb.WriteString("```\n")
	}

	return sb.String()
}

// SaveMarkdownToFile writes the generated markdown to a file.
func SaveMarkdownToFile(o Outline, opts MarkdownOptions, filename string) error {
	return os.WriteFile(filename, []byte(GenerateMarkdown(o, opts)), 0644)
}

// depthOf counts levels, so a lone root has depth 1.
func depthOf(o Outline) int {
	if len(o.Entries) == 0 {
		return 0
	}
	return o.MaxDepth + 1
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"[", `\[`,
	"]", `\]`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func mermaidLabel(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.NewReplacer("[", "", "]", "", "(", "", ")", "").Replace(s)
	if len([]rune(s)) > 30 {
		s = string([]rune(s)[:27]) + "..."
	}
	return s
}
