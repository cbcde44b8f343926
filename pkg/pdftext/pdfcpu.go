package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpu 默认配置会在用户目录下创建配置文件，失败时直接退出进程
var disableConfigDir sync.Once

// pdfcpuEngine parses the text operators of each page content stream.
type pdfcpuEngine struct{}

func (pdfcpuEngine) Name() string { return EnginePDFCPU }

func (pdfcpuEngine) Pages(ctx context.Context, data []byte) ([]string, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	pages := make([]string, 0, pctx.PageCount)
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNr, err)
		}
		pages = append(pages, textFromContentStream(content))
	}
	return pages, nil
}

// operand is a string or number preceding a content stream operator.
type operand struct {
	str   []byte
	num   float64
	isStr bool
}

// tjSpaceThreshold is the TJ displacement, in thousandths of an em, read as a word gap.
const tjSpaceThreshold = -200

// textWriter lays shown strings out in lines. A line ends when the text
// position moves vertically or a next-line operator runs; a horizontal move
// on the same line becomes a space.
type textWriter struct {
	sb        strings.Builder
	y         float64
	lastY     float64
	hasText   bool
	moved     bool
	lineBreak bool
}

func (w *textWriter) show(s []byte) {
	if len(s) == 0 {
		return
	}
	if w.hasText {
		switch {
		case w.lineBreak || w.y != w.lastY:
			w.sb.WriteByte('\n')
		case w.moved:
			w.sb.WriteByte(' ')
		}
	}
	w.sb.WriteString(decodePDFText(s))
	w.hasText, w.moved, w.lineBreak = true, false, false
	w.lastY = w.y
}

func (w *textWriter) showArray(ops []operand) {
	for _, op := range ops {
		switch {
		case op.isStr:
			w.show(op.str)
		case op.num <= tjSpaceThreshold:
			w.moved = true
		}
	}
}

// textFromContentStream keeps the strings shown by Tj, TJ, ' and " and
// starts a new line whenever the text position changes line.
func textFromContentStream(data []byte) string {
	var (
		w   textWriter
		ops []operand
	)

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, n := readLiteral(data[i:])
			ops = append(ops, operand{str: s, isStr: true})
			i += n
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '<':
			s, n := readHex(data[i:])
			ops = append(ops, operand{str: s, isStr: true})
			i += n
		case c == '/':
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
		case isPDFDelimiter(c):
			i++
		default:
			j := i
			for j < len(data) && !isPDFSpace(data[j]) && !isPDFDelimiter(data[j]) {
				j++
			}
			tok := string(data[i:j])
			i = j
			if f, err := strconv.ParseFloat(tok, 64); err == nil {
				ops = append(ops, operand{num: f})
				continue
			}
			applyOperator(&w, tok, ops)
			ops = ops[:0]
		}
	}
	return w.sb.String()
}

func applyOperator(w *textWriter, op string, ops []operand) {
	switch op {
	case "BT":
		w.y = 0
	case "Td", "TD":
		if len(ops) >= 2 {
			w.y += ops[len(ops)-1].num
		}
		w.moved = true
	case "Tm":
		if len(ops) >= 6 {
			w.y = ops[len(ops)-1].num
		}
		w.moved = true
	case "T*":
		w.lineBreak = true
	case "Tj":
		if len(ops) > 0 {
			w.show(ops[len(ops)-1].str)
		}
	case "'", `"`:
		w.lineBreak = true
		if len(ops) > 0 {
			w.show(ops[len(ops)-1].str)
		}
	case "TJ":
		w.showArray(ops)
	}
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// readLiteral reads a literal string starting at data[0] == '(' and returns
// its unescaped bytes and the number of bytes consumed.
func readLiteral(data []byte) ([]byte, int) {
	var out []byte
	depth := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch c {
		case '(':
			if depth > 0 {
				out = append(out, c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return out, i + 1
			}
			out = append(out, c)
		case '\\':
			if i+1 >= len(data) {
				return out, len(data)
			}
			i++
			switch e := data[i]; e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b', 'f':
				// backspace and form feed carry no text
			case '\r':
				// line continuation
				if i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			case '\n':
			default:
				if e < '0' || e > '7' {
					out = append(out, e)
					continue
				}
				val := int(e - '0')
				for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(data[i]-'0')
				}
				out = append(out, byte(val))
			}
		default:
			out = append(out, c)
		}
	}
	return out, len(data)
}

// readHex reads a hex string starting at data[0] == '<'. An odd final digit
// is padded with 0.
func readHex(data []byte) ([]byte, int) {
	var (
		out  []byte
		hi   byte
		half bool
	)
	for i := 1; i < len(data); i++ {
		c := data[i]
		if c == '>' {
			if half {
				out = append(out, hi<<4)
			}
			return out, i + 1
		}
		v, ok := hexValue(c)
		if !ok {
			continue
		}
		if half {
			out = append(out, hi<<4|v)
		} else {
			hi = v
		}
		half = !half
	}
	return out, len(data)
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
