package ffmpeg

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/John-Robertt/numscan/internal/media"
)

func TestNewExtractor_Defaults(t *testing.T) {
	e := NewExtractor(Options{Format: ".PNG"}, nil)
	assert.Equal(t, "ffmpeg", e.ffmpeg)
	assert.Equal(t, "ffprobe", e.ffprobe)
	assert.Equal(t, 1, e.fps)
	assert.Equal(t, "png", e.format)
}

func TestExtractor_Args(t *testing.T) {
	e := NewExtractor(Options{FPS: 2, Format: "jpg"}, nil)
	args := e.Args("/in/clip.mp4", "/tmp/frames")

	assert.Contains(t, args, "fps=2")
	assert.Equal(t, filepath.Join("/tmp/frames", "frame_%06d.jpg"), args[len(args)-1])
	i := indexOf(args, "-i")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, "/in/clip.mp4", args[i+1])
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("12.480000\n")
	require.NoError(t, err)
	assert.InDelta(t, 12.48, d, 1e-9)

	d, err = ParseDuration("N/A")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDuration("abc")
	assert.Error(t, err)
}

var (
	_ media.FrameSource = (*Extractor)(nil)
	_ media.Prober      = (*Extractor)(nil)
)

func TestExtractor_MissingBinary(t *testing.T) {
	e := NewExtractor(Options{
		FFmpeg:  filepath.Join(t.TempDir(), "no-such-ffmpeg"),
		FFprobe: filepath.Join(t.TempDir(), "no-such-ffprobe"),
	}, zaptest.NewLogger(t))

	_, err := e.Frames(context.Background(), "/in/clip.mp4", t.TempDir())
	var ee *ExecError
	require.True(t, errors.As(err, &ee), "期望 ExecError，实际 %T %v", err, err)
	assert.Equal(t, "ffmpeg", ee.Tool)
}

func TestExtractor_DurationMissingProbe(t *testing.T) {
	e := NewExtractor(Options{FFprobe: filepath.Join(t.TempDir(), "no-such-ffprobe")}, nil)

	_, err := e.Duration(context.Background(), "/in/clip.mp4")
	var ee *ExecError
	require.True(t, errors.As(err, &ee), "期望 ExecError，实际 %T %v", err, err)
	assert.Equal(t, "ffprobe", ee.Tool)
}

func TestExtractor_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExtractor(Options{FFmpeg: "ffmpeg-not-installed", FFprobe: "ffprobe-not-installed"}, nil)
	_, err := e.Frames(ctx, "/in/clip.mp4", t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

// 需要本机安装 ffmpeg：用 lavfi 生成 3 秒测试视频，再按 1fps 抽帧。
func TestExtractor_RealFFmpeg(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("未安装 ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("未安装 ffprobe")
	}

	dir := t.TempDir()
	video := filepath.Join(dir, "clip.mp4")
	gen := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=64x48:rate=10", "-y", video)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("无法生成测试视频：%v %s", err, out)
	}

	frameDir := filepath.Join(dir, "frames")
	require.NoError(t, os.MkdirAll(frameDir, 0o755))

	e := NewExtractor(Options{}, zaptest.NewLogger(t))
	frames, err := e.Frames(context.Background(), video, frameDir)
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.FileExists(t, f.Path)
	}

	d, err := e.Duration(context.Background(), video)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, d, 0.5)
}

func indexOf(ss []string, s string) int {
	for i, v := range ss {
		if v == s {
			return i
		}
	}
	return -1
}
