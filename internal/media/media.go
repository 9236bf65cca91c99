// Package media 定义“把一个媒体输入变成若干静态帧”的抽象。
package media

import (
	"context"

	"github.com/John-Robertt/numscan/internal/domain"
)

// FrameSource 把视频解码为按固定采样率抽取的静态帧。
//
// 约束：
// - 帧文件写入 dir（调用方创建并负责清理）
// - 返回的帧按播放顺序排列，Index 从 0 连续递增
// - ctx 取消时必须尽快返回 ctx.Err()（或包裹它的错误）
type FrameSource interface {
	Frames(ctx context.Context, video string, dir string) ([]domain.Frame, error)
}

// Prober 是 FrameSource 可选实现的能力：读取视频时长（秒），用于报告。
// 读取失败不影响抽帧。
type Prober interface {
	Duration(ctx context.Context, video string) (float64, error)
}

// ImageFrames 把一张静态图片视为单帧输入。
func ImageFrames(path string) []domain.Frame {
	return []domain.Frame{{Index: 0, Path: path}}
}
