package number

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Status 是号码的校验结论。
type Status string

const (
	Valid   Status = "Valid"
	Invalid Status = "Invalid"
)

// Entry 是一条国家区号规则：Code 形如 "+91"，Length 为去掉区号后的期望位数。
type Entry struct {
	Code   string
	Length int
}

// Table 是有序的区号表。遍历顺序即匹配优先级，构造后只读。
type Table struct {
	entries []Entry
}

// defaultEntries 的顺序是契约的一部分，不要排序。
var defaultEntries = []Entry{
	{"+93", 9}, {"+355", 9}, {"+213", 9}, {"+376", 6}, {"+244", 9}, {"+54", 10},
	{"+61", 9}, {"+43", 10}, {"+880", 10}, {"+32", 9}, {"+55", 10}, {"+1", 10},
	{"+86", 11}, {"+20", 10}, {"+33", 9}, {"+49", 10}, {"+91", 10}, {"+62", 10},
	{"+39", 10}, {"+81", 10}, {"+254", 9}, {"+52", 10}, {"+234", 10}, {"+92", 10},
	{"+7", 10}, {"+966", 9}, {"+27", 9}, {"+82", 9}, {"+34", 9}, {"+90", 10},
	{"+44", 10},
}

var defaultTable = NewTable(defaultEntries...)

// DefaultTable 返回内置的 31 条区号表（进程级共享，只读）。
func DefaultTable() Table { return defaultTable }

// NewTable 以给定顺序构造区号表（复制入参，调用方后续修改不影响 Table）。
func NewTable(entries ...Entry) Table {
	return Table{entries: append([]Entry(nil), entries...)}
}

// Entries 返回区号表副本（保持顺序）。
func (t Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

func (t Table) Len() int { return len(t.entries) }

// Match 按表顺序寻找第一个“前缀命中且剩余长度正确”的区号。
// 前缀命中但长度不符的条目不会阻止后续条目继续尝试。
func (t Table) Match(n Normalized) (Entry, bool) {
	for _, e := range t.entries {
		if !strings.HasPrefix(n, e.Code) {
			continue
		}
		if len(n)-len(e.Code) == e.Length {
			return e, true
		}
	}
	return Entry{}, false
}

// Validate 是全函数：任何输入都只会得到 Valid 或 Invalid，不会报错。
func (t Table) Validate(n Normalized) Status {
	if _, ok := t.Match(n); ok {
		return Valid
	}
	return Invalid
}

// Validate 使用内置区号表校验号码。
func Validate(n Normalized) Status { return defaultTable.Validate(n) }

// PrefixCollisions 列出表中“一个区号是另一个区号前缀”的组合（[短, 长]）。
// 表按顺序匹配，一旦出现前缀冲突，结果就依赖条目顺序。
func (t Table) PrefixCollisions() [][2]string {
	var out [][2]string
	for i, a := range t.entries {
		for j, b := range t.entries {
			if i == j {
				continue
			}
			if len(a.Code) < len(b.Code) && strings.HasPrefix(b.Code, a.Code) {
				out = append(out, [2]string{a.Code, b.Code})
			}
		}
	}
	return out
}

// RegionFor 返回区号对应的 ISO 地区码（例如 "+91" => "IN"），仅用于报告标注。
// "+1"/"+7" 这类多地区共享的区号返回主地区；无法识别时返回空串。
func RegionFor(code string) string {
	cc, err := strconv.Atoi(strings.TrimPrefix(code, "+"))
	if err != nil || cc <= 0 {
		return ""
	}
	r := phonenumbers.GetRegionCodeForCountryCode(cc)
	if r == "ZZ" {
		return ""
	}
	return r
}
