package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	_ "image/jpeg" // 注册 JPEG 解码器（视频帧与照片多为 jpeg/png）
	"image/png"

	_ "golang.org/x/image/bmp"  // 注册 BMP 解码器
	_ "golang.org/x/image/tiff" // 注册 TIFF 解码器
)

// ErrUnsupported 表示没有已注册的解码器（例如 webp/gif）；调用方应直接把原图交给 OCR。
var ErrUnsupported = errors.New("imgx: 不支持的图片格式")

// GrayscalePNG 把图片转为 8 位灰度并编码为 PNG，作为 OCR 前的预处理。
//
// 约束：
// - 输入允许是 PNG/JPEG/BMP/TIFF
// - 输出固定为 PNG（无损，避免二次压缩产生的字符边缘噪点）
// - 尺寸保持不变；输出的坐标原点固定为 (0,0)
func GrayscalePNG(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, errors.New("图片为空")
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("图片尺寸无效")
	}

	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	var out bytes.Buffer
	if err := png.Encode(&out, dst); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
