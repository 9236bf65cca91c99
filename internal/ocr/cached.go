package ocr

import (
	"context"

	"go.uber.org/zap"

	"github.com/John-Robertt/numscan/internal/infra/cache"
)

// Cached 在 Engine 外层加一层按图片内容索引的磁盘缓存。
//
// 缓存读写失败只记 warning，不影响识别结果。
type Cached struct {
	Engine Engine
	Store  cache.Store
	Params []string // 额外参与 key 的识别参数（如语言）
	Logger *zap.Logger
}

func (c Cached) Name() string { return c.Engine.Name() }

func (c Cached) Recognize(ctx context.Context, imagePath string) (string, error) {
	if !c.Store.Enabled() {
		return c.Engine.Recognize(ctx, imagePath)
	}
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}

	key, err := cache.KeyFile(imagePath, c.Params...)
	if err != nil {
		log.Warn("计算缓存 key 失败", zap.String("image", imagePath), zap.Error(err))
		return c.Engine.Recognize(ctx, imagePath)
	}

	if text, ok, err := c.Store.ReadText(c.Engine.Name(), key); err != nil {
		log.Warn("读取 OCR 缓存失败", zap.String("image", imagePath), zap.Error(err))
	} else if ok {
		return text, nil
	}

	text, err := c.Engine.Recognize(ctx, imagePath)
	if err != nil {
		return "", err
	}
	if err := c.Store.WriteText(c.Engine.Name(), key, text); err != nil {
		log.Warn("写入 OCR 缓存失败", zap.String("image", imagePath), zap.Error(err))
	}
	return text, nil
}
