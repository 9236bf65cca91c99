package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseract_DefaultsAndArgs(t *testing.T) {
	tx := NewTesseract(TesseractOptions{}, nil)
	assert.Equal(t, "tesseract", tx.Name())
	assert.Equal(t, "eng", tx.Lang())
	assert.Equal(t, []string{"/f.png", "stdout", "-l", "eng"}, tx.Args("/f.png"))

	th := NewTesseract(TesseractOptions{Format: FormatHOCR, Lang: "eng+chi_sim"}, nil)
	assert.Equal(t, "tesseract_hocr", th.Name())
	assert.Equal(t, []string{"/f.png", "stdout", "-l", "eng+chi_sim", "hocr"}, th.Args("/f.png"))
}

func TestTesseract_MissingBinary(t *testing.T) {
	tx := NewTesseract(TesseractOptions{Bin: filepath.Join(t.TempDir(), "no-such-tesseract")}, nil)
	_, err := tx.Recognize(context.Background(), "/f.png")

	var ee *ExecError
	require.True(t, errors.As(err, &ee), "期望 ExecError，实际 %T %v", err, err)
	assert.Equal(t, "tesseract", ee.Tool)
}

// 需要本机安装 tesseract：空白图片应识别为空文本（或仅空白）。
func TestTesseract_RealBlankImage(t *testing.T) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("未安装 tesseract")
	}

	img := image.NewGray(image.Rect(0, 0, 120, 40))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(0, 0, color.Gray{Y: 254})

	p := filepath.Join(t.TempDir(), "blank.png")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	for _, format := range []string{FormatText, FormatHOCR} {
		text, err := NewTesseract(TesseractOptions{Format: format}, nil).Recognize(context.Background(), p)
		if err != nil {
			var ee *ExecError
			if errors.As(err, &ee) {
				t.Skipf("tesseract 不可用（可能缺少语言包）：%v", err)
			}
			t.Fatalf("不期望错误：%v", err)
		}
		assert.Empty(t, trimAll(text), "format=%s", format)
	}
}

func trimAll(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != ' ' && r != '\n' && r != '\t' && r != '\f' && r != '\r' {
			out = append(out, r)
		}
	}
	return string(out)
}
