package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

const (
	FormatText = "text"
	FormatHOCR = "hocr"
)

// TesseractOptions 配置 tesseract 命令行调用；零值字段使用默认值。
type TesseractOptions struct {
	Bin     string // 默认 "tesseract"
	Lang    string // 默认 "eng"
	Format  string // "text"（默认）或 "hocr"
	MinConf int    // 仅 hocr：丢弃置信度低于该值的词
}

// Tesseract 通过外部 tesseract 进程识别文字（stdout 输出）。
type Tesseract struct {
	bin     string
	lang    string
	format  string
	minConf int
	logger  *zap.Logger
}

func NewTesseract(opts TesseractOptions, logger *zap.Logger) *Tesseract {
	if opts.Bin == "" {
		opts.Bin = "tesseract"
	}
	if opts.Lang == "" {
		opts.Lang = "eng"
	}
	if opts.Format != FormatHOCR {
		opts.Format = FormatText
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tesseract{
		bin:     opts.Bin,
		lang:    opts.Lang,
		format:  opts.Format,
		minConf: opts.MinConf,
		logger:  logger,
	}
}

// Name 区分两种输出格式：它们对同一张图可能给出不同文本，缓存不能混用。
func (t *Tesseract) Name() string {
	if t.format == FormatHOCR {
		return "tesseract_hocr"
	}
	return "tesseract"
}

// Lang 返回识别语言（参与缓存 key）。
func (t *Tesseract) Lang() string { return t.lang }

// Args 返回识别命令参数（不含可执行文件本身）。
func (t *Tesseract) Args(imagePath string) []string {
	args := []string{imagePath, "stdout", "-l", t.lang}
	if t.format == FormatHOCR {
		args = append(args, "hocr")
	}
	return args
}

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.bin, t.Args(imagePath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ExecError{Tool: "tesseract", Image: imagePath, Output: strings.TrimSpace(stderr.String()), Err: err}
	}

	if t.format == FormatText {
		return stdout.String(), nil
	}

	text, err := ParseHOCR(&stdout, t.minConf)
	if err != nil {
		return "", &ExecError{Tool: "tesseract", Image: imagePath, Err: err}
	}
	t.logger.Debug("hocr 解析完成", zap.String("image", imagePath), zap.Int("bytes", len(text)))
	return text, nil
}
