package biz

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// minBlockLength 样本块的最小字符数，更短的块不可能是完整的化验条目。
const minBlockLength = 50

var (
	// 分页符或连续两个以上空行视为块边界
	blockSeparatorRe = regexp.MustCompile(`\f|\n\s*\n\s*\n`)

	blockTitleRe     = regexp.MustCompile(`^[A-Z\s]{5,}`)
	blockResultRe    = regexp.MustCompile(`(?i)RESULTADO|RESULT|VALOR|VALUE`)
	blockValueUnitRe = regexp.MustCompile(`\d+[,.]?\d*\s*[a-zA-Z/%]+`)
	blockReferenceRe = regexp.MustCompile(`(?i)REFERÊNCIA|REFERENCE|NORMAL|VALORES`)
)

// FindSampleBlock 返回第一个结构上像化验条目的文本块。
// 条件：以大写标题开头，且含结果关键字或"数值+单位"，且含参考范围关键字。
// 找不到时返回 false，这是正常结果而不是错误。
func FindSampleBlock(text string) (string, bool) {
	for _, block := range splitBlocks(text) {
		if utf8.RuneCountInString(block) < minBlockLength {
			continue
		}
		if isSampleBlock(block) {
			return block, true
		}
	}
	return "", false
}

func splitBlocks(text string) []string {
	parts := blockSeparatorRe.Split(text, -1)
	blocks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			blocks = append(blocks, p)
		}
	}
	return blocks
}

func isSampleBlock(block string) bool {
	if !blockTitleRe.MatchString(block) {
		return false
	}
	if !blockResultRe.MatchString(block) && !blockValueUnitRe.MatchString(block) {
		return false
	}
	return blockReferenceRe.MatchString(block)
}
