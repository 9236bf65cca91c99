package number

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// 候选号码：可选前导 '+'，一个数字，至少 7 个 {数字, 空白, '-', '(', ')'}，再以数字结尾。
// 注意：\s 包含换行，跨行的数字串同样会被吃进同一个候选（保持与既有导出结果一致）。
var candidateRE = regexp.MustCompile(`\+?\d[\d\s\-()]{7,}\d`)

// Extract 从一段 OCR 文本中按从左到右、互不重叠的方式提取候选号码。
//
// 约束：
// - 纯函数：相同输入 => 相同输出
// - 无匹配时返回空切片（非 nil），便于上层直接 range / 序列化
// - 匹配前先做 fold：全角字符转半角，非 ASCII 空白与 \v 转为 ' '；其它文字的数字不视为数字
func Extract(text string) []string {
	if text == "" {
		return []string{}
	}
	out := candidateRE.FindAllString(fold(text), -1)
	if out == nil {
		return []string{}
	}
	return out
}

// fold 把 OCR 常见的全角数字/符号与不间断空格等归一到 RE2 的 ASCII \d、\s 能匹配的形式。
// ASCII 的 \t \n \f \r 原样保留。
func fold(text string) string {
	text = width.Narrow.String(text)
	return strings.Map(func(r rune) rune {
		if r == '\v' || (r > unicode.MaxASCII && unicode.IsSpace(r)) {
			return ' '
		}
		return r
	}, text)
}
