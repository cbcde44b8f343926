// Package pdftext extracts plain text from PDF documents.
//
// Two engines are available: "ledongthuc" lays out the positioned glyphs of
// each page, "pdfcpu" parses the text operators of each page content stream.
// Both keep one output line per text line.
// Pages are joined with a form feed so that downstream consumers can treat
// page boundaries as block separators.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"
)

// ErrUnreadable is returned for password-protected, corrupt or empty documents.
var ErrUnreadable = errors.New("PDF appears to be empty or unreadable")

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\f"

// minTextLength is the shortest cleaned text accepted as readable.
const minTextLength = 10

// Engine extracts the raw, uncleaned text of a document.
type Engine interface {
	Pages(ctx context.Context, data []byte) ([]string, error)
	Name() string
}

// Extractor turns PDF bytes into cleaned text.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Engine names.
const (
	EngineLedongthuc = "ledongthuc"
	EnginePDFCPU     = "pdfcpu"
)

var engines = map[string]func() Engine{
	EngineLedongthuc: func() Engine { return ledongthucEngine{} },
	EnginePDFCPU:     func() Engine { return pdfcpuEngine{} },
}

// Engines lists the available engine names.
func Engines() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TextExtractor is the Extractor backed by one Engine.
type TextExtractor struct {
	engine Engine
}

// New returns an extractor for the named engine.
func New(engine string) (*TextExtractor, error) {
	factory, ok := engines[engine]
	if !ok {
		return nil, fmt.Errorf("pdftext: unknown engine %q", engine)
	}
	return &TextExtractor{engine: factory()}, nil
}

// NewWithEngine wraps an existing engine.
func NewWithEngine(e Engine) *TextExtractor {
	return &TextExtractor{engine: e}
}

// Engine returns the engine name.
func (x *TextExtractor) Engine() string {
	return x.engine.Name()
}

// Extract returns the cleaned text of data. Any parse failure, including a
// panic inside the engine, is reported as ErrUnreadable.
func (x *TextExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrUnreadable
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s parser panic: %v", ErrUnreadable, x.engine.Name(), r)
		}
	}()

	pages, err := x.engine.Pages(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	text = Clean(joinPages(pages))
	if utf8.RuneCountInString(text) < minTextLength {
		return "", ErrUnreadable
	}
	return text, nil
}

func joinPages(pages []string) string {
	var n int
	for _, p := range pages {
		n += len(p) + 1
	}
	buf := make([]byte, 0, n)
	for i, p := range pages {
		if i > 0 {
			buf = append(buf, PageSeparator...)
		}
		buf = append(buf, p...)
	}
	return string(buf)
}
