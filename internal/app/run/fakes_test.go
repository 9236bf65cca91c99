package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/John-Robertt/numscan/internal/aggregate"
	"github.com/John-Robertt/numscan/internal/config"
	"github.com/John-Robertt/numscan/internal/domain"
)

// fakeFrames 按视频文件名返回预设帧文本：每帧写成一个文件，内容即“识别结果”。
type fakeFrames struct {
	texts map[string][]string // base name -> 每帧文本
	err   error

	mu   sync.Mutex
	dirs []string
}

func (f *fakeFrames) Frames(ctx context.Context, video, dir string) ([]domain.Frame, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()

	texts, ok := f.texts[filepath.Base(video)]
	if !ok {
		return nil, fmt.Errorf("未知视频 %q", video)
	}
	frames := make([]domain.Frame, 0, len(texts))
	for i, text := range texts {
		p := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i+1))
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			return nil, err
		}
		frames = append(frames, domain.Frame{Index: i, Path: p})
	}
	return frames, nil
}

// probedFrames 在 fakeFrames 之上实现 media.Prober。
type probedFrames struct {
	fakeFrames
	durations map[string]float64
	err       error
}

func (f *probedFrames) Duration(ctx context.Context, video string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.durations[filepath.Base(video)], nil
}

// fileOCR 把图片文件内容当作识别文本；内容以 "ERR" 开头时模拟识别失败。
type fileOCR struct {
	calls  atomic.Int32
	hook   func(path string)
	result func(path string) (string, bool)
}

func (o *fileOCR) Name() string { return "fake" }

func (o *fileOCR) Recognize(ctx context.Context, path string) (string, error) {
	o.calls.Add(1)
	if o.hook != nil {
		o.hook(path)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if o.result != nil {
		if text, ok := o.result(path); ok {
			return text, nil
		}
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(string(b), "ERR") {
		return "", errors.New("识别失败")
	}
	return string(b), nil
}

type fakeFetcher struct {
	objects map[string]string // bucket/key -> 内容
}

func (f fakeFetcher) Download(ctx context.Context, obj domain.RemoteObject, dest string) error {
	content, ok := f.objects[obj.Bucket+"/"+obj.Key]
	if !ok {
		return errors.New("NoSuchKey")
	}
	return os.WriteFile(dest, []byte(content), 0o644)
}

// newEff 构造一个以 cwd 为基准的最小配置，临时目录放在独立目录以便断言清理。
func newEff(t *testing.T, cwd string, inputs ...string) config.EffectiveConfig {
	t.Helper()
	return config.EffectiveConfig{
		Cwd:     cwd,
		Inputs:  inputs,
		Out:     filepath.Join(cwd, "contacts.xlsx"),
		Mode:    aggregate.ModeValidate,
		OnError: config.OnErrorAbort,
		Workers: 4,
		TempDir: t.TempDir(),
	}
}

func writeInput(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir 失败：%v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("临时目录未清理：%v", names)
	}
}
