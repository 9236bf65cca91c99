package run

import (
	"time"

	"github.com/John-Robertt/numscan/internal/config"
	"github.com/John-Robertt/numscan/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnFrameDone 来自多个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用："plan" / "process"。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在一个媒体输入处理结束（成功或失败）时调用，idx 从 1 开始。
	OnItemDone(idx, total int, res domain.MediaResult, dur time.Duration)
	// OnFrameDone 在单帧识别结束时调用（完成顺序，不保证帧序）。
	OnFrameDone(input string, frame domain.Frame, total int, err error, dur time.Duration)
}

// nopObserver 让执行流程不必到处判断 obs != nil。
type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig)                              {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration)           {}
func (nopObserver) OnItemDone(int, int, domain.MediaResult, time.Duration)      {}
func (nopObserver) OnFrameDone(string, domain.Frame, int, error, time.Duration) {}
