package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/John-Robertt/numscan/internal/app/run"
	"github.com/John-Robertt/numscan/internal/config"
	"github.com/John-Robertt/numscan/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// - 过程信息只写到 stderr（或 fallback 到 stdout 的 TTY），不污染 stdout 的 JSON 输出契约
// - keepalive：长视频识别期间没有条目完成时，也会定期输出当前帧进度
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int

	current     string
	frameDone   int
	frameTotal  int
	frameFailed int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] numscan run (%s)\n", now.Format("15:04:05"), eff.Mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  inputs: %d\n", len(eff.Inputs))
	fmt.Fprintf(p.w, "  on_error: %s\n", eff.OnError)
	fmt.Fprintf(p.w, "  workers: %d\n", eff.Workers)
	fmt.Fprintf(p.w, "  fps: %d\n", eff.FPS)
	fmt.Fprintf(p.w, "  ocr: %s lang=%s", eff.OCRFormat, eff.OCRLang)
	if eff.OCRFormat == "hocr" {
		fmt.Fprintf(p.w, " min_conf=%d", eff.OCRMinConf)
	}
	fmt.Fprintln(p.w)
	fmt.Fprintf(p.w, "  grayscale: %s\n", onOff(eff.Grayscale))
	fmt.Fprintf(p.w, "  cache: %s\n", orOff(eff.CacheDir))
	fmt.Fprintf(p.w, "  storage: %s\n", orOff(eff.Storage.Endpoint))

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  out: %s\n", eff.Out)
	if eff.ReportPath != "" {
		fmt.Fprintf(p.w, "  report: %s\n", eff.ReportPath)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "plan":
		p.total = intField(fields, "media")
		fmt.Fprintf(p.w, "规划: media=%d images=%d videos=%d (%s)\n\n",
			p.total, intField(fields, "images"), intField(fields, "videos"), formatShortDuration(dur),
		)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "process":
		fmt.Fprintf(p.w, "\n处理: media=%d failed=%d numbers=%d (%s)\n",
			intField(fields, "media"), intField(fields, "failed"), intField(fields, "numbers"), formatShortDuration(dur),
		)
		p.stopTickerLocked()
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.MediaResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	p.current = ""
	p.frameDone, p.frameTotal, p.frameFailed = 0, 0, 0

	switch res.Status {
	case domain.StatusFailed:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, displayInput(res.Input), res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		p.ok++
		video := ""
		if res.DurationSec > 0 {
			video = fmt.Sprintf(" video=%s", formatElapsed(time.Duration(res.DurationSec*float64(time.Second))))
		}
		fmt.Fprintf(p.w, "[%d/%d] %s OK frames=%d candidates=%d%s (%s)\n",
			idx, total, displayInput(res.Input), res.Frames, res.Candidates, video, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

// OnFrameDone 只更新计数；帧级输出交给 keepalive，否则长视频会刷屏。
func (p *progressUI) OnFrameDone(input string, frame domain.Frame, total int, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != input {
		p.current = input
		p.frameDone, p.frameFailed = 0, 0
	}
	p.frameTotal = total
	p.frameDone++
	if err != nil {
		p.frameFailed++
	}
}

// Close 停止 keepalive；run 中途失败时由调用方兜底调用。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) statusLineLocked() string {
	line := fmt.Sprintf("进度: media=%d/%d ok=%d fail=%d elapsed=%s",
		p.done, p.total, p.ok, p.fail, formatElapsed(time.Since(p.startedAt)),
	)
	if p.current != "" && p.frameTotal > 0 {
		line += fmt.Sprintf(" 当前=%s frames=%d/%d", displayInput(p.current), p.frameDone, p.frameTotal)
		if p.frameFailed > 0 {
			line += fmt.Sprintf(" frame_fail=%d", p.frameFailed)
		}
	}
	return line + "\n"
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	stopCh := p.stopCh
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprint(p.w, p.statusLineLocked())
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func orOff(s string) string {
	if strings.TrimSpace(s) == "" {
		return "off"
	}
	return truncate(s, 120)
}

// displayInput 对本地路径只显示文件名；s3:// 保持原样。
func displayInput(in string) string {
	if in == "" || strings.HasPrefix(in, "s3://") {
		return in
	}
	return filepath.Base(in)
}

// truncate 按字节上限截断，但只在 rune 边界处切（错误信息多为中文）。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	suffix := "..."
	if max <= 3 {
		suffix = ""
	}
	cut := max - len(suffix)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + suffix
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
