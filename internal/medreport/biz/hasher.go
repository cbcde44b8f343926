package biz

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashText 返回文本的 SHA-256 十六进制摘要（64 个字符）。
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
