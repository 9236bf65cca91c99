package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/John-Robertt/numscan/internal/app/run"
	"github.com/John-Robertt/numscan/internal/config"
	"github.com/John-Robertt/numscan/internal/infra/cache"
	"github.com/John-Robertt/numscan/internal/infra/ffmpeg"
	"github.com/John-Robertt/numscan/internal/infra/metrics"
	"github.com/John-Robertt/numscan/internal/infra/objstore"
	"github.com/John-Robertt/numscan/internal/ocr"
)

// uploader 把本地产物上传到对象存储；返回空 key 表示未配置上传目标。
type uploader interface {
	UploadReport(ctx context.Context, runID, localPath string) (string, error)
}

type appDeps struct {
	run.Deps
	Uploader uploader
}

type depsFactory func(eff config.EffectiveConfig, log *zap.Logger, m *metrics.Metrics) (appDeps, error)

// buildDeps 按最终配置装配外部协作者：ffmpeg 抽帧、tesseract 识别（可选缓存）、对象存储。
func buildDeps(eff config.EffectiveConfig, log *zap.Logger, m *metrics.Metrics) (appDeps, error) {
	var d appDeps

	d.Frames = ffmpeg.NewExtractor(ffmpeg.Options{
		FFmpeg:  eff.FFmpeg,
		FFprobe: eff.FFprobe,
		FPS:     eff.FPS,
	}, log.Named("ffmpeg"))

	engines, err := ocr.NewRegistry(
		ocr.NewTesseract(ocr.TesseractOptions{Bin: eff.Tesseract, Lang: eff.OCRLang, Format: ocr.FormatText}, log.Named("ocr")),
		ocr.NewTesseract(ocr.TesseractOptions{Bin: eff.Tesseract, Lang: eff.OCRLang, Format: ocr.FormatHOCR, MinConf: eff.OCRMinConf}, log.Named("ocr")),
	)
	if err != nil {
		return appDeps{}, err
	}
	name := engineName(eff.OCRFormat)
	engine, ok := engines.Get(name)
	if !ok {
		return appDeps{}, fmt.Errorf("未知识别引擎 %q（可选：%v）", name, engines.Names())
	}

	store := cache.New(eff.CacheDir, false)
	if store.Enabled() {
		engine = ocr.Cached{
			Engine: engine,
			Store:  store,
			Params: []string{eff.OCRLang, fmt.Sprintf("min_conf=%d", eff.OCRMinConf)},
			Logger: log.Named("cache"),
		}
	}
	d.OCR = engine

	sc := objstore.Config{
		Endpoint:     eff.Storage.Endpoint,
		AccessKey:    eff.Storage.AccessKey,
		SecretKey:    eff.Storage.SecretKey,
		UseSSL:       eff.Storage.UseSSL,
		ReportBucket: eff.Storage.ReportBucket,
	}
	if sc.Enabled() {
		s, err := objstore.New(sc)
		if err != nil {
			return appDeps{}, err
		}
		d.Fetcher = s
		d.Uploader = s
	}

	d.Logger = log
	d.Metrics = m
	return d, nil
}

func engineName(format string) string {
	if format == ocr.FormatHOCR {
		return "tesseract_hocr"
	}
	return "tesseract"
}
