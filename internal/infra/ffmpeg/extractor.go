package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/numscan/internal/domain"
)

// ExecError 表示 ffmpeg/ffprobe 执行失败（不存在、退出码非 0、被取消）。
type ExecError struct {
	Tool   string
	Input  string
	Output string // stderr 尾部，便于定位
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s 处理 %q 失败：%v", e.Tool, filepath.Base(e.Input), e.Err)
	if e.Output != "" {
		msg += "：" + e.Output
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Options 是 Extractor 的可配置项；零值字段使用默认值。
type Options struct {
	FFmpeg  string // 默认 "ffmpeg"
	FFprobe string // 默认 "ffprobe"
	FPS     int    // 默认 1
	Format  string // 默认 "png"
}

// Extractor 通过外部 ffmpeg 进程按固定帧率抽帧。
type Extractor struct {
	ffmpeg  string
	ffprobe string
	fps     int
	format  string
	logger  *zap.Logger
}

func NewExtractor(opts Options, logger *zap.Logger) *Extractor {
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	if opts.FFprobe == "" {
		opts.FFprobe = "ffprobe"
	}
	if opts.FPS <= 0 {
		opts.FPS = 1
	}
	if opts.Format == "" {
		opts.Format = "png"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		ffmpeg:  opts.FFmpeg,
		ffprobe: opts.FFprobe,
		fps:     opts.FPS,
		format:  strings.TrimPrefix(strings.ToLower(opts.Format), "."),
		logger:  logger,
	}
}

// Args 返回抽帧命令的参数（不含可执行文件本身）。
func (e *Extractor) Args(videoPath, outputDir string) []string {
	pattern := filepath.Join(outputDir, fmt.Sprintf("frame_%%06d.%s", e.format))
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d", e.fps),
		"-y",
		pattern,
	}
}

// Frames 实现 media.FrameSource。
//
// 没有抽出任何帧（例如时长为 0 的视频）不是错误：返回空切片。
func (e *Extractor) Frames(ctx context.Context, videoPath, outputDir string) ([]domain.Frame, error) {
	cmd := exec.CommandContext(ctx, e.ffmpeg, e.Args(videoPath, outputDir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ExecError{Tool: "ffmpeg", Input: videoPath, Output: tail(stderr.String(), 512), Err: err}
	}

	paths, err := filepath.Glob(filepath.Join(outputDir, "frame_*."+e.format))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	// %06d 保证字典序即播放顺序。
	sort.Strings(paths)

	frames := make([]domain.Frame, 0, len(paths))
	for i, p := range paths {
		frames = append(frames, domain.Frame{Index: i, Path: p})
	}

	e.logger.Debug("抽帧完成",
		zap.String("video", videoPath),
		zap.Int("count", len(frames)),
	)
	return frames, nil
}

// Duration 通过 ffprobe 读取视频时长（秒），实现 media.Prober。
func (e *Extractor) Duration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		detail := ""
		if errors.As(err, &ee) {
			detail = tail(string(ee.Stderr), 512)
		}
		return 0, &ExecError{Tool: "ffprobe", Input: videoPath, Output: detail, Err: err}
	}
	return ParseDuration(string(out))
}

// ParseDuration 解析 ffprobe 输出的时长；"N/A" 视为 0。
func ParseDuration(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, nil
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return d, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
