package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

const (
	ErrCodeUnsupportedFormat = "unsupported_format"
	ErrCodeFetchFailed       = "fetch_failed"
	ErrCodeDecodeFailed      = "decode_failed"
	ErrCodeOCRFailed         = "ocr_failed"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeCanceled          = "canceled"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigNotFound    = "config_not_found"
)

// RunReport 是对外稳定输出（stdout JSON / report_path）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Mode   string `json:"mode"`
	Output string `json:"output"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary  `json:"summary"`
	Items   []MediaResult  `json:"items"`
	Numbers []NumberResult `json:"numbers"`
}

type ReportSummary struct {
	Media   int `json:"media"`
	Failed  int `json:"failed"`
	Frames  int `json:"frames"`
	Numbers int `json:"numbers"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
}

// MediaResult 是单个输入媒体的处理结果。
type MediaResult struct {
	Input      string `json:"input"`
	Kind       string `json:"kind"`
	Frames     int    `json:"frames"`
	Candidates int    `json:"candidates"`

	// DurationSec 仅视频：ffprobe 读到的时长；读取失败或图片为 0。
	DurationSec float64 `json:"duration_sec,omitempty"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// NumberResult 是一条去重后的号码。
// Status 在“仅提取”模式下为空；CallingCode/Region 只在 Valid 时有值。
type NumberResult struct {
	Number      string `json:"number"`
	Status      string `json:"status,omitempty"`
	CallingCode string `json:"calling_code,omitempty"`
	Region      string `json:"region,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（JSON 为 RFC3339 且后缀 Z）
// 2) items 按 input 稳定排序；numbers 按号码字典序排序
// 3) summary 由 items/numbers 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Items == nil {
		r.Items = []MediaResult{}
	}
	if r.Numbers == nil {
		r.Numbers = []NumberResult{}
	}

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Input < r.Items[j].Input })
	sort.SliceStable(r.Numbers, func(i, j int) bool { return r.Numbers[i].Number < r.Numbers[j].Number })

	var s ReportSummary
	for _, it := range r.Items {
		s.Media++
		s.Frames += it.Frames
		if it.Status == StatusFailed {
			s.Failed++
		}
	}
	for _, n := range r.Numbers {
		s.Numbers++
		switch n.Status {
		case "Valid":
			s.Valid++
		case "Invalid":
			s.Invalid++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
