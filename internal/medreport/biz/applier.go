package biz

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minPatternLineLength 格式化后长度不超过该值的 "名称: 值" 行被丢弃。
const minPatternLineLength = 5

// minKeywordLineLength 关键字过滤保留行的最小长度（不含）。
const minKeywordLineLength = 10

var (
	lineSplitRe   = regexp.MustCompile("[\n\f]")
	upperRe       = regexp.MustCompile(`[A-Z]`)
	digitRe       = regexp.MustCompile(`\d`)
	boilerplateRe = regexp.MustCompile(`(?i)PÁGINA|PAGE|DATA|DATE|PACIENTE|PATIENT`)
)

// ApplyPattern 用模式精简全文。
// 有正则时按不区分大小写全局匹配，每个匹配输出一行 "名称: 值"；
// 只有正则无法编译或没有正则时才退回 KeywordFilter；正则可用但无有效匹配时返回空串。
// 第二个返回值表示是否实际使用了正则。
func ApplyPattern(text string, p ExtractionPattern) (string, bool) {
	if p.Regex == "" {
		return KeywordFilter(text), false
	}

	re, err := regexp.Compile("(?i)" + p.Regex)
	if err != nil {
		return KeywordFilter(text), false
	}

	matches := re.FindAllStringSubmatch(text, -1)
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		name := m[0]
		if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			name = strings.TrimSpace(m[1])
		}
		value := ""
		if len(m) > 2 {
			value = strings.TrimSpace(m[2])
		}

		line := name + ": " + value
		if utf8.RuneCountInString(line) > minPatternLineLength {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), true
}

// KeywordFilter 保留同时含大写字母和数字、长度足够且不是页眉页脚样板的行。
func KeywordFilter(text string) string {
	var kept []string
	for _, line := range lineSplitRe.Split(text, -1) {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= minKeywordLineLength {
			continue
		}
		if !upperRe.MatchString(line) || !digitRe.MatchString(line) {
			continue
		}
		if boilerplateRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
