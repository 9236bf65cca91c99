// Package ocr 把“图片 -> 文本”的外部识别引擎收敛到统一接口。
package ocr

import (
	"context"
	"fmt"
	"path/filepath"
)

// Engine 是文本来源：输入一张静态图片，输出识别出的文本（可能为空）。
//
// 约束：
// - Recognize 不做缓存（由 Cached 统一包装）
// - 识别不到任何文字不是错误：返回 ""
// - ctx 取消时必须尽快返回
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// ExecError 表示识别引擎进程执行失败。
type ExecError struct {
	Tool   string
	Image  string
	Output string
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s 识别 %q 失败：%v", e.Tool, filepath.Base(e.Image), e.Err)
	if e.Output != "" {
		msg += "：" + e.Output
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }
