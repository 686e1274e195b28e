package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/philoview/pkg/config"
	"github.com/vanderheijden86/philoview/pkg/export"
	"github.com/vanderheijden86/philoview/pkg/hierarchy"
	"github.com/vanderheijden86/philoview/pkg/logging"
)

// Export formats.
const (
	formatMarkdown = "md"
	formatSVG      = "svg"
)

type exportOptions struct {
	format  string
	out     string
	depth   int
	diagram bool
	title   string
}

func newExportCmd(o *rootOptions) *cobra.Command {
	eo := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the school hierarchy as a markdown outline or SVG diagram",
		Long: `Crawls the whole hierarchy (or --depth levels of it) and writes it out.
Schools that fail to load are marked and reported; the rest is still
written. The format defaults to the --out extension, then markdown.`,
		Example: `  pv export --out schools.md
  pv export --format svg --out schools.svg --depth 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, o, eo)
		},
	}
	f := cmd.Flags()
	f.StringVar(&eo.format, "format", "", "md or svg")
	f.StringVarP(&eo.out, "out", "o", "", "output file; - or empty for stdout")
	f.IntVar(&eo.depth, "depth", 0, "levels to load below the top level schools; 0 for all")
	f.BoolVar(&eo.diagram, "diagram", false, "add a mermaid diagram to markdown output")
	f.StringVar(&eo.title, "title", "Schools", "document title")
	return cmd
}

// resolveFormat picks the format from the flag, then the file extension.
func resolveFormat(format, out string) (string, error) {
	switch strings.ToLower(format) {
	case "md", "markdown":
		return formatMarkdown, nil
	case "svg":
		return formatSVG, nil
	case "":
		if strings.EqualFold(filepath.Ext(out), ".svg") {
			return formatSVG, nil
		}
		return formatMarkdown, nil
	}
	return "", fmt.Errorf("unknown export format %q (want md or svg)", format)
}

func runExport(cmd *cobra.Command, o *rootOptions, eo *exportOptions) error {
	format, err := resolveFormat(eo.format, eo.out)
	if err != nil {
		return err
	}
	if eo.depth < 0 {
		return fmt.Errorf("--depth must not be negative")
	}

	cfg, _, _, err := o.load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	roots, err := client.TopLevel(ctx)
	if err != nil {
		return fmt.Errorf("loading top level schools: %w", err)
	}
	store := hierarchy.New(client, hierarchy.WithLogger(log))
	store.SetRoots(roots)

	if err := export.Crawl(ctx, store, cfg.LookaheadWorkers, eo.depth); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnw("export crawl incomplete", "error", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: some schools could not be loaded: %v\n", err)
	}
	outline := export.Collect(store)

	if eo.out == "" || eo.out == "-" {
		return writeOutline(cmd.OutOrStdout(), format, outline, cfg, eo)
	}

	f, err := os.Create(eo.out)
	if err != nil {
		return fmt.Errorf("create %s: %w", eo.out, err)
	}
	if err := writeOutline(f, format, outline, cfg, eo); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d schools to %s\n", len(outline.Entries), eo.out)
	return nil
}

func writeOutline(w io.Writer, format string, outline export.Outline, cfg *config.Config, eo *exportOptions) error {
	switch format {
	case formatSVG:
		return export.WriteSVG(w, outline, export.SVGOptions{Title: eo.title})
	default:
		_, err := io.WriteString(w, export.GenerateMarkdown(outline, export.MarkdownOptions{
			Title:   eo.title,
			BaseURL: cfg.BaseURL,
			Diagram: eo.diagram,
		}))
		return err
	}
}
