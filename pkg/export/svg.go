package export

import (
	"fmt"
	"io"
	"os"

	svg "github.com/ajstarks/svgo"
	"github.com/mattn/go-runewidth"
)

// SVGOptions controls WriteSVG. Zero fields take defaults.
type SVGOptions struct {
	Title     string
	RowHeight int
	Indent    int
	CharWidth int // approximate glyph width used to size boxes
	Padding   int
}

func (o *SVGOptions) defaults() {
	if o.RowHeight <= 0 {
		o.RowHeight = 28
	}
	if o.Indent <= 0 {
		o.Indent = 28
	}
	if o.CharWidth <= 0 {
		o.CharWidth = 8
	}
	if o.Padding <= 0 {
		o.Padding = 16
	}
}

const (
	boxStyle         = "fill:#f8f8f2;stroke:#6272a4;stroke-width:1"
	boxUnloadedStyle = "fill:#f8f8f2;stroke:#6272a4;stroke-width:1;stroke-dasharray:4,3"
	edgeStyle        = "fill:none;stroke:#6272a4;stroke-width:1"
	labelStyle       = "font-family:sans-serif;font-size:13px;fill:#282a36"
	titleStyle       = "font-family:sans-serif;font-size:16px;font-weight:bold;fill:#282a36"
)

// WriteSVG draws the outline as an indented tree: one box per school,
// one row per box, with elbow connectors from each parent.
func WriteSVG(w io.Writer, o Outline, opts SVGOptions) error {
	opts.defaults()

	top := opts.Padding
	if opts.Title != "" {
		top += opts.RowHeight
	}
	boxH := opts.RowHeight - 8

	type box struct{ x, y, w int }
	boxes := make([]box, len(o.Entries))
	width := 240
	for i, e := range o.Entries {
		b := box{
			x: opts.Padding + e.Depth*opts.Indent,
			y: top + i*opts.RowHeight,
			w: runewidth.StringWidth(e.Name)*opts.CharWidth + 16,
		}
		boxes[i] = b
		if r := b.x + b.w + opts.Padding; r > width {
			width = r
		}
	}
	height := top + len(o.Entries)*opts.RowHeight + opts.Padding

	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(width, height)
	canvas.Title(titleOr(opts.Title))
	if opts.Title != "" {
		canvas.Text(opts.Padding, opts.Padding+opts.RowHeight/2, opts.Title, titleStyle)
	}

	canvas.Gstyle(edgeStyle)
	for i, e := range o.Entries {
		if e.Parent < 0 {
			continue
		}
		p, c := boxes[e.Parent], boxes[i]
		x := p.x + opts.Indent/2
		mid := c.y + boxH/2
		canvas.Polyline([]int{x, x, c.x}, []int{p.y + boxH, mid, mid})
	}
	canvas.Gend()

	canvas.Gstyle(labelStyle)
	for i, e := range o.Entries {
		b := boxes[i]
		style := boxStyle
		if e.HasChildren && !e.Loaded {
			style = boxUnloadedStyle
		}
		canvas.Roundrect(b.x, b.y, b.w, boxH, 4, 4, style)
		canvas.Text(b.x+8, b.y+boxH/2+5, e.Name)
	}
	canvas.Gend()

	canvas.End()
	return ew.err
}

// errWriter keeps the first write error, since svgo drops them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// SaveSVGToFile writes the diagram to filename.
func SaveSVGToFile(o Outline, opts SVGOptions, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	if err := WriteSVG(f, o, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func titleOr(t string) string {
	if t == "" {
		return "Schools"
	}
	return t
}
