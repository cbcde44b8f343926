package pdftext

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf16BOM = []byte{0xFE, 0xFF}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// decodePDFText converts the bytes of a shown string to UTF-8. Strings
// with a UTF-16BE or UTF-8 byte order mark are decoded as such, everything
// else is read as WinAnsi (Windows-1252), the encoding of simple fonts.
func decodePDFText(b []byte) string {
	switch {
	case bytes.HasPrefix(b, utf16BOM):
		if s, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(b); err == nil {
			return string(s)
		}
	case bytes.HasPrefix(b, utf8BOM):
		return string(b[len(utf8BOM):])
	}

	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("\uFFFD")))
	}
	return string(s)
}
