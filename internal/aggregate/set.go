package aggregate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/John-Robertt/numscan/internal/domain"
	"github.com/John-Robertt/numscan/internal/number"
)

// Mode 决定输出形态。
type Mode string

const (
	// ModeValidate：两列（Contact Number, Validation Status），先 Valid 后 Invalid，各自保持插入顺序。
	ModeValidate Mode = "validate"
	// ModeExtract：单列（Contact Number），不做校验，按字典序升序输出。
	ModeExtract Mode = "extract"
)

// ParseMode 校验并解析输出模式。
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeValidate, ModeExtract:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("mode 只能是 validate 或 extract，实际是 %q", s)
	}
}

// orderedSet 是保持插入顺序的字符串集合。
type orderedSet struct {
	index map[string]struct{}
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]struct{}, 64)}
}

func (s *orderedSet) add(v string) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

func (s *orderedSet) has(v string) bool {
	_, ok := s.index[v]
	return ok
}

// ResultSet 汇总一次 run 中所有帧提取到的号码（集合语义：重复插入是 no-op）。
//
// 约束：
// - 并发安全：Add 可以来自多个 goroutine
// - validate 模式下 valid/invalid 互斥（同一号码的结论恒定）
// - 无容量上限，内存只随不同号码数增长
type ResultSet struct {
	mode Mode

	mu      sync.Mutex
	valid   *orderedSet
	invalid *orderedSet
	all     *orderedSet
}

func New(mode Mode) *ResultSet {
	rs := &ResultSet{mode: mode}
	if mode == ModeExtract {
		rs.all = newOrderedSet()
	} else {
		rs.valid = newOrderedSet()
		rs.invalid = newOrderedSet()
	}
	return rs
}

func (r *ResultSet) Mode() Mode { return r.mode }

// Add 插入一个规范化号码。extract 模式下忽略 st。
// 返回 true 表示这是第一次见到该号码。
func (r *ResultSet) Add(n number.Normalized, st number.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == ModeExtract {
		return r.all.add(n)
	}
	if r.valid.has(n) || r.invalid.has(n) {
		return false
	}
	if st == number.Valid {
		return r.valid.add(n)
	}
	return r.invalid.add(n)
}

// Len 返回不同号码的数量。
func (r *ResultSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mode == ModeExtract {
		return len(r.all.order)
	}
	return len(r.valid.order) + len(r.invalid.order)
}

// Valid 返回有效号码（插入顺序）；extract 模式下为空。
func (r *ResultSet) Valid() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.valid == nil {
		return []string{}
	}
	return append([]string{}, r.valid.order...)
}

// Invalid 返回无效号码（插入顺序）；extract 模式下为空。
func (r *ResultSet) Invalid() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invalid == nil {
		return []string{}
	}
	return append([]string{}, r.invalid.order...)
}

// Rows 按模式生成表格行。
func (r *ResultSet) Rows() []domain.ReportRow {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mode == ModeExtract {
		nums := append([]string(nil), r.all.order...)
		sort.Strings(nums)
		rows := make([]domain.ReportRow, 0, len(nums))
		for _, n := range nums {
			rows = append(rows, domain.ReportRow{Number: n})
		}
		return rows
	}

	rows := make([]domain.ReportRow, 0, len(r.valid.order)+len(r.invalid.order))
	for _, n := range r.valid.order {
		rows = append(rows, domain.ReportRow{Number: n, Status: string(number.Valid)})
	}
	for _, n := range r.invalid.order {
		rows = append(rows, domain.ReportRow{Number: n, Status: string(number.Invalid)})
	}
	return rows
}
