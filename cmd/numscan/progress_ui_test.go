package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/numscan/internal/aggregate"
	"github.com/John-Robertt/numscan/internal/config"
	"github.com/John-Robertt/numscan/internal/domain"
)

func TestProgressUI_Events(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)
	p.tickerInterval = time.Hour

	p.OnStart(config.EffectiveConfig{
		Mode:      aggregate.ModeValidate,
		Inputs:    []string{"a.png", "clip.mp4"},
		OnError:   config.OnErrorSkip,
		Workers:   4,
		FPS:       1,
		OCRFormat: "hocr",
		OCRLang:   "eng",
		Out:       "/tmp/contacts.xlsx",
	})
	p.OnPhaseDone("plan", map[string]any{"media": 2, "images": 1, "videos": 1}, 10*time.Millisecond)
	p.OnItemDone(1, 2, domain.MediaResult{Input: "/data/a.png", Status: domain.StatusProcessed, Frames: 1, Candidates: 2}, time.Second)

	p.OnItemDone(1, 2, domain.MediaResult{Input: "/data/intro.mp4", Status: domain.StatusProcessed, Frames: 95, DurationSec: 94.6}, time.Second)
	p.OnFrameDone("/data/clip.mp4", domain.Frame{Index: 0}, 3, nil, time.Millisecond)
	p.OnItemDone(1, 2, domain.MediaResult{Input: "/data/intro.mp4", Status: domain.StatusProcessed, Frames: 95, DurationSec: 94.6}, time.Second)
	p.OnFrameDone("/data/clip.mp4", domain.Frame{Index: 2}, 3, errors.New("boom"), time.Millisecond)

	p.mu.Lock()
	line := p.statusLineLocked()
	p.mu.Unlock()
	if !strings.Contains(line, "media=1/2") || !strings.Contains(line, "当前=clip.mp4 frames=2/3") || !strings.Contains(line, "frame_fail=1") {
		t.Fatalf("进度行不符合预期：%q", line)
	}

	p.OnItemDone(2, 2, domain.MediaResult{
		Input:     "/data/clip.mp4",
		Status:    domain.StatusFailed,
		ErrorCode: domain.ErrCodeOCRFailed,
		ErrorMsg:  "boom",
	}, 2*time.Second)
	p.OnPhaseDone("process", map[string]any{"media": 2, "failed": 1, "numbers": 2}, 3*time.Second)

	if p.tickerStarted {
		t.Fatalf("最后一条完成后 ticker 应已停止")
	}

	out := buf.String()
	for _, want := range []string{
		"numscan run (validate)",
		"ocr: hocr lang=eng min_conf=0",
		"out: /tmp/contacts.xlsx",
		"规划: media=2 images=1 videos=1",
		"[1/2] a.png OK frames=1 candidates=2 (1.0s)",
		"[1/2] intro.mp4 OK frames=95 candidates=0 video=00:01:34 (1.0s)",
		"[2/2] clip.mp4 FAIL ocr_failed: boom (2.0s)",
		"处理: media=2 failed=1 numbers=2 (3.0s)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
}

func TestProgressUI_CloseIsIdempotent(t *testing.T) {
	p := newProgressUI(&bytes.Buffer{})
	p.OnPhaseDone("plan", map[string]any{"media": 1}, 0)
	if !p.tickerStarted {
		t.Fatalf("有媒体时应启动 keepalive")
	}
	p.Close()
	p.Close()
	if p.tickerStarted {
		t.Fatalf("Close 后 ticker 应已停止")
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatElapsed(3723 * time.Second); got != "01:02:03" {
		t.Fatalf("formatElapsed=%q", got)
	}
	if got := formatShortDuration(-time.Second); got != "0.0s" {
		t.Fatalf("formatShortDuration=%q", got)
	}
	if got := truncate("  abcdefghij  ", 6); got != "abc..." {
		t.Fatalf("truncate=%q", got)
	}
	for _, max := range []int{2, 4, 5, 8, 10} {
		got := truncate("处理失败：超时", max)
		if !utf8.ValidString(got) || len(got) > max {
			t.Fatalf("truncate(max=%d)=%q：应为合法 UTF-8 且不超过上限", max, got)
		}
	}
	if got := truncate("处理失败：超时", 8); got != "处..." {
		t.Fatalf("truncate=%q", got)
	}
	if got := intField(map[string]any{"n": int64(7), "s": "x"}, "n"); got != 7 {
		t.Fatalf("intField=%d", got)
	}
	if got := intField(map[string]any{"s": "x"}, "s"); got != 0 {
		t.Fatalf("非整数字段应返回 0，实际 %d", got)
	}
	if got := displayInput("s3://bucket/a.png"); got != "s3://bucket/a.png" {
		t.Fatalf("displayInput=%q", got)
	}
	if got := displayInput("/x/y/a.png"); got != "a.png" {
		t.Fatalf("displayInput=%q", got)
	}
}
