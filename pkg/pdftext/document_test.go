package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal PDF with one Helvetica content stream per page.
// Each line is shown with Tj and lines are 16pt apart; a line starting with
// '[' is shown with TJ as is.
func buildPDF(pages ...[]string) []byte {
	n := 3 + 2*len(pages)
	objs := make([]string, n+1)
	kids := make([]string, len(pages))
	for i, lines := range pages {
		page, content := 4+2*i, 5+2*i
		kids[i] = fmt.Sprintf("%d 0 R", page)

		stream := contentStream(lines)
		objs[page] = fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", content)
		objs[content] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)
	}
	objs[1] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[2] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>", strings.Join(kids, " "), len(pages))
	objs[3] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, n+1)
	for i := 1; i <= n; i++ {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i, objs[i])
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", n+1)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", n+1, xref)
	return buf.Bytes()
}

func contentStream(lines []string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("0 -16 Td\n")
		}
		if strings.HasPrefix(line, "[") {
			sb.WriteString(line + " TJ\n")
		} else {
			sb.WriteString("(" + line + ") Tj\n")
		}
	}
	sb.WriteString("ET")
	return sb.String()
}

var labReport = [][]string{
	{
		"Patient: John Doe 1980",
		"GLUCOSE 110 mg/dL",
		"HEMOGLOBIN 13.5 g/dL",
		"Date 2024-01-01",
	},
	{
		`VALORES DE REFER\312NCIA 12 a 16`,
		"[(GLICOSE) -250 (99 mg/dL)]",
		`Valor \(normal\) P\301GINA 2`,
	},
}

func TestEngines_RealDocument(t *testing.T) {
	data := buildPDF(labReport...)
	want := "Patient: John Doe 1980\n" +
		"GLUCOSE 110 mg/dL\n" +
		"HEMOGLOBIN 13.5 g/dL\n" +
		"Date 2024-01-01" +
		PageSeparator +
		"VALORES DE REFERÊNCIA 12 a 16\n" +
		"GLICOSE 99 mg/dL\n" +
		"Valor (normal) PÁGINA 2"

	for _, name := range Engines() {
		t.Run(name, func(t *testing.T) {
			x, err := New(name)
			require.NoError(t, err)

			text, err := x.Extract(context.Background(), data)
			require.NoError(t, err)
			assert.Equal(t, want, text)

			pages := strings.Split(text, PageSeparator)
			require.Len(t, pages, 2)
			assert.Contains(t, strings.Split(pages[0], "\n"), "GLUCOSE 110 mg/dL")
			assert.Contains(t, strings.Split(pages[0], "\n"), "HEMOGLOBIN 13.5 g/dL")
		})
	}
}

func TestEngines_SinglePage(t *testing.T) {
	data := buildPDF([]string{"CREATININE 0.9 mg/dL", "UREA 32 mg/dL"})

	for _, name := range Engines() {
		t.Run(name, func(t *testing.T) {
			x, err := New(name)
			require.NoError(t, err)

			text, err := x.Extract(context.Background(), data)
			require.NoError(t, err)
			assert.Equal(t, "CREATININE 0.9 mg/dL\nUREA 32 mg/dL", text)
			assert.NotContains(t, text, PageSeparator)
		})
	}
}

func TestEngines_CorruptDocument(t *testing.T) {
	valid := buildPDF(labReport...)

	tests := []struct {
		name string
		data []byte
	}{
		{"header only", []byte("%PDF-1.4\n%%EOF\n")},
		{"truncated", valid[:64]},
		{"garbage body", append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte{0xde, 0xad}, 256)...)},
	}

	for _, name := range Engines() {
		x, err := New(name)
		require.NoError(t, err)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				_, err := x.Extract(context.Background(), tt.data)
				assert.ErrorIs(t, err, ErrUnreadable)
			})
		}
	}
}

func TestEngines_NoTextIsUnreadable(t *testing.T) {
	data := buildPDF([]string{}, []string{})

	for _, name := range Engines() {
		t.Run(name, func(t *testing.T) {
			x, err := New(name)
			require.NoError(t, err)

			_, err = x.Extract(context.Background(), data)
			assert.ErrorIs(t, err, ErrUnreadable)
		})
	}
}
