package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

// wordGap is the horizontal gap, relative to the font size, read as a space.
const wordGap = 0.15

// ledongthucEngine lays out the positioned glyphs of each page as lines.
// A glyph whose baseline moves by more than half the font size starts a new
// line; a horizontal jump on the same line becomes a space.
type ledongthucEngine struct{}

func (ledongthucEngine) Name() string { return EngineLedongthuc }

func (ledongthucEngine) Pages(ctx context.Context, data []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pages = append(pages, layoutGlyphs(p.Content().Text))
	}
	return pages, nil
}

func layoutGlyphs(glyphs []pdf.Text) string {
	var (
		sb   strings.Builder
		prev pdf.Text
		has  bool
	)
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}
		if has {
			size := math.Max(math.Abs(g.FontSize), 1)
			switch {
			case math.Abs(g.Y-prev.Y) > size/2:
				sb.WriteByte('\n')
			case startsWord(prev, g, size):
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
		prev, has = g, true
	}
	return sb.String()
}

// startsWord reports whether g sits apart from prev on the same line. Fonts
// without width tables report zero advance, so any horizontal jump counts.
func startsWord(prev, g pdf.Text, size float64) bool {
	if prev.W == 0 {
		return g.X != prev.X
	}
	return g.X-(prev.X+prev.W) > size*wordGap
}
