package number

import "strings"

// Normalized 是去掉空格与连字符之后的号码；它是校验、去重与输出的最小单位。
type Normalized = string

var stripper = strings.NewReplacer(" ", "", "-", "")

// Normalize 只移除空格与 '-'。
//
// 括号、制表符、换行与 '+' 原样保留：提取规则允许括号出现，但规范化只针对空格/连字符，
// 带括号的号码因此通常会被判为 Invalid。
func Normalize(candidate string) Normalized {
	return stripper.Replace(candidate)
}
