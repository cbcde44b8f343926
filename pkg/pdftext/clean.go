package pdftext

import (
	"regexp"
	"strings"
)

// maxBlankRun 是页内保留的最多连续空行数
const maxBlankRun = 2

var (
	zeroWidthRe  = regexp.MustCompile("[\u200B-\u200D\uFEFF]")
	horizontalRe = regexp.MustCompile(`(?:[^\S\n\f]|\x{00A0})+`)
)

// Clean normalizes extracted text while keeping its line structure:
// zero-width characters are removed, horizontal whitespace runs become one
// space and every line is trimmed. Runs of blank lines are capped at
// maxBlankRun so block boundaries survive; blank lines at the edges of a page
// and empty pages are removed. Page separators are kept.
func Clean(text string) string {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	text = zeroWidthRe.ReplaceAllString(text, "")
	text = horizontalRe.ReplaceAllString(text, " ")

	pages := strings.Split(text, PageSeparator)
	kept := pages[:0]
	for _, page := range pages {
		lines := strings.Split(page, "\n")
		out := lines[:0]
		blanks := 0
		for _, line := range lines {
			if line = strings.TrimSpace(line); line == "" {
				if len(out) > 0 {
					blanks++
				}
				continue
			}
			for ; blanks > 0; blanks-- {
				if blanks <= maxBlankRun {
					out = append(out, "")
				}
			}
			out = append(out, line)
		}
		if len(out) > 0 {
			kept = append(kept, strings.Join(out, "\n"))
		}
	}
	return strings.Join(kept, PageSeparator)
}
