package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/numscan/internal/aggregate"
	"github.com/John-Robertt/numscan/internal/app/planner"
	"github.com/John-Robertt/numscan/internal/config"
	"github.com/John-Robertt/numscan/internal/domain"
	"github.com/John-Robertt/numscan/internal/infra/imgx"
	"github.com/John-Robertt/numscan/internal/infra/metrics"
	"github.com/John-Robertt/numscan/internal/infra/tracing"
	"github.com/John-Robertt/numscan/internal/media"
	"github.com/John-Robertt/numscan/internal/number"
	"github.com/John-Robertt/numscan/internal/ocr"
)

const (
	StageFetch  = "fetch"
	StageDecode = "decode"
	StageOCR    = "ocr"
	StageIO     = "io"
)

// ToolError 表示某个媒体输入在外部工具或本地 IO 阶段失败（下载/抽帧/识别/工作目录）。
// on_error=abort 时它终止整个 run；on_error=skip 时只记为该条目失败。
type ToolError struct {
	Input string
	Stage string
	Err   error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("处理 %q 失败（%s）：%v", e.Input, e.Stage, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Code 把阶段映射为报告里的 error_code。
func (e *ToolError) Code() string {
	switch e.Stage {
	case StageFetch:
		return domain.ErrCodeFetchFailed
	case StageDecode:
		return domain.ErrCodeDecodeFailed
	case StageOCR:
		return domain.ErrCodeOCRFailed
	default:
		return domain.ErrCodeIOFailed
	}
}

// Fetcher 把远程输入下载到本地文件。
type Fetcher interface {
	Download(ctx context.Context, obj domain.RemoteObject, dest string) error
}

// Deps 是执行一次 run 所需的外部协作者。
//
// Frames/OCR 必填；Fetcher 为空时 s3:// 输入在规划阶段被拒绝；
// Logger/Metrics 为空时不输出；Table 为空时使用内置号码表。
type Deps struct {
	Frames  media.FrameSource
	OCR     ocr.Engine
	Fetcher Fetcher
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Table   number.Table
}

// Execute 执行一次 run，返回报告与结果集。
//
// 失败语义：
// - 规划失败（不支持的格式、输入不存在）：不处理任何媒体，返回错误
// - 外部工具失败：按 eff.OnError 决定 abort（返回 *ToolError）或 skip
// - ctx 取消：尽快返回 ctx.Err()
// 返回错误时结果集为 nil（调用方不应写表格）；报告仍然可用于诊断。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) (domain.RunReport, *aggregate.ResultSet, error) {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) (domain.RunReport, *aggregate.ResultSet, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Table.Len() == 0 {
		deps.Table = number.DefaultTable()
	}
	log := deps.Logger

	started := time.Now().UTC()
	obs.OnStart(eff)

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Mode:      string(eff.Mode),
		Output:    eff.Out,
		StartedAt: started,
		Items:     make([]domain.MediaResult, 0, len(eff.Inputs)),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	ctx, span := tracing.Tracer().Start(ctx, "numscan.run", trace.WithAttributes(
		attribute.String("run_id", rr.RunID),
		attribute.String("mode", rr.Mode),
		attribute.Int("inputs", len(eff.Inputs)),
	))
	defer span.End()

	planStarted := time.Now()
	files, err := planner.Plan(eff.Cwd, eff.Inputs, deps.Fetcher != nil)
	if err != nil {
		recordSpanError(span, err)
		return finish(), nil, err
	}
	var images, videos int
	for _, f := range files {
		if f.Kind == domain.KindVideo {
			videos++
		} else {
			images++
		}
	}
	obs.OnPhaseDone("plan", map[string]any{
		"media":  len(files),
		"images": images,
		"videos": videos,
	}, time.Since(planStarted))
	log.Info("规划完成", zap.String("run_id", rr.RunID), zap.Int("images", images), zap.Int("videos", videos))

	if deps.Frames == nil && videos > 0 {
		return finish(), nil, errors.New("未配置视频抽帧器")
	}
	if deps.OCR == nil {
		return finish(), nil, errors.New("未配置文字识别引擎")
	}

	// run 级临时目录：所有下载与抽帧都在其下，任何路径退出都会删除。
	runDir, err := os.MkdirTemp(eff.TempDir, "numscan-"+rr.RunID[:8]+"-")
	if err != nil {
		return finish(), nil, fmt.Errorf("创建临时目录失败：%w", err)
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			log.Warn("清理临时目录失败", zap.String("dir", runDir), zap.Error(err))
		}
	}()

	p := &pipeline{eff: eff, deps: deps, obs: obs, log: log, runDir: runDir}
	set := aggregate.New(eff.Mode)

	processStarted := time.Now()
	var failed int
	for i, m := range files {
		if err := ctx.Err(); err != nil {
			recordSpanError(span, err)
			return finish(), nil, err
		}

		itemStarted := time.Now()
		res, err := p.processMedia(ctx, i, m, set)
		dur := time.Since(itemStarted)
		rr.Items = append(rr.Items, res)
		deps.Metrics.IncMedia(string(m.Kind), res.Status)
		deps.Metrics.ObserveMedia(string(m.Kind), dur)
		obs.OnItemDone(i+1, len(files), res, dur)

		if err == nil {
			log.Info("媒体处理完成",
				zap.String("input", m.Input),
				zap.Int("frames", res.Frames),
				zap.Int("candidates", res.Candidates),
				zap.Duration("dur", dur),
			)
			continue
		}

		var te *ToolError
		if errors.As(err, &te) && eff.OnError == config.OnErrorSkip {
			failed++
			log.Warn("媒体处理失败，已跳过", zap.String("input", m.Input), zap.String("stage", te.Stage), zap.Error(te.Err))
			continue
		}
		log.Error("媒体处理失败，终止", zap.String("input", m.Input), zap.Error(err))
		recordSpanError(span, err)
		return finish(), nil, err
	}

	obs.OnPhaseDone("process", map[string]any{
		"media":   len(files),
		"failed":  failed,
		"numbers": set.Len(),
	}, time.Since(processStarted))

	rr.Numbers = numberResults(set, deps.Table)
	span.SetAttributes(attribute.Int("numbers", set.Len()))
	return finish(), set, nil
}

type pipeline struct {
	eff    config.EffectiveConfig
	deps   Deps
	obs    Observer
	log    *zap.Logger
	runDir string

	probeWarned bool
}

// processMedia 处理单个媒体：下载（远程）→ 抽帧（视频）→ 并发识别 → 按帧序写入结果集。
//
// 只有全部帧识别成功才写入结果集：失败条目不贡献任何号码。
func (p *pipeline) processMedia(ctx context.Context, idx int, m domain.MediaFile, set *aggregate.ResultSet) (res domain.MediaResult, err error) {
	res = domain.MediaResult{Input: m.Input, Kind: string(m.Kind), Status: domain.StatusProcessed}

	ctx, span := tracing.Tracer().Start(ctx, "numscan.media", trace.WithAttributes(
		attribute.String("input", m.Input),
		attribute.String("kind", string(m.Kind)),
	))
	defer func() {
		span.SetAttributes(attribute.Int("frames", res.Frames), attribute.Int("candidates", res.Candidates))
		if err != nil {
			recordSpanError(span, err)
		}
		span.End()
	}()

	fail := func(stage string, cause error) (domain.MediaResult, error) {
		res.Status = domain.StatusFailed
		if ctx.Err() != nil {
			res.ErrorCode = domain.ErrCodeCanceled
			res.ErrorMsg = "已取消"
			return res, ctx.Err()
		}
		te := &ToolError{Input: m.Input, Stage: stage, Err: cause}
		res.ErrorCode = te.Code()
		res.ErrorMsg = te.Error()
		return res, te
	}

	// 每个媒体独立的工作目录：处理结束即删除，不等整个 run 结束。
	workDir := filepath.Join(p.runDir, fmt.Sprintf("item-%04d", idx))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fail(StageIO, err)
	}
	defer os.RemoveAll(workDir)

	local := m.AbsPath
	if m.Remote != nil {
		local = filepath.Join(workDir, "source"+m.Ext)
		if err := p.deps.Fetcher.Download(ctx, *m.Remote, local); err != nil {
			return fail(StageFetch, err)
		}
	}

	var frames []domain.Frame
	switch m.Kind {
	case domain.KindVideo:
		if pr, ok := p.deps.Frames.(media.Prober); ok {
			res.DurationSec = p.probe(ctx, pr, m.Input, local)
		}
		frameDir := filepath.Join(workDir, "frames")
		if err := os.MkdirAll(frameDir, 0o755); err != nil {
			return fail(StageDecode, err)
		}
		frames, err = p.deps.Frames.Frames(ctx, local, frameDir)
		if err != nil {
			return fail(StageDecode, err)
		}
	default:
		frames = media.ImageFrames(local)
	}
	res.Frames = len(frames)

	texts, err := p.recognize(ctx, m.Input, frames, workDir)
	if err != nil {
		return fail(StageOCR, err)
	}

	for i, text := range texts {
		cands := number.Extract(text)
		res.Candidates += len(cands)
		for _, c := range cands {
			n := number.Normalize(c)
			var st number.Status
			if set.Mode() == aggregate.ModeValidate {
				st = p.deps.Table.Validate(n)
			}
			if set.Add(n, st) {
				p.deps.Metrics.IncNumber(string(st))
				p.log.Debug("新号码", zap.String("input", m.Input), zap.Int("frame", frames[i].Index), zap.String("number", n), zap.String("status", string(st)))
			}
		}
	}
	return res, nil
}

// probe 读取视频时长；失败只影响报告字段。
// 同一 run 内只有第一次失败记 warning（例如未安装 ffprobe），其余记 debug。
func (p *pipeline) probe(ctx context.Context, pr media.Prober, input, path string) float64 {
	d, err := pr.Duration(ctx, path)
	if err == nil {
		return d
	}
	if ctx.Err() != nil {
		return 0
	}
	if !p.probeWarned {
		p.probeWarned = true
		p.log.Warn("无法获取视频时长（后续同类错误只记 debug）", zap.String("input", input), zap.Error(err))
	} else {
		p.log.Debug("无法获取视频时长", zap.String("input", input), zap.Error(err))
	}
	return 0
}

// recognize 以有界并发识别全部帧，结果按帧序返回。
// 任一帧失败即取消其余帧并返回该错误。
func (p *pipeline) recognize(ctx context.Context, input string, frames []domain.Frame, workDir string) ([]string, error) {
	texts := make([]string, len(frames))
	if len(frames) == 0 {
		return texts, nil
	}

	workers := p.eff.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			started := time.Now()

			path := f.Path
			if p.eff.Grayscale {
				path = p.preprocess(f, workDir)
			}

			text, err := p.deps.OCR.Recognize(gctx, path)
			dur := time.Since(started)
			p.deps.Metrics.IncFrames()
			p.deps.Metrics.ObserveOCR(dur)
			p.obs.OnFrameDone(input, f, len(frames), err, dur)
			if err != nil {
				return fmt.Errorf("第 %d 帧：%w", f.Index, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return texts, nil
}

// preprocess 生成灰度 PNG 供识别；任何失败都回退到原图。
func (p *pipeline) preprocess(f domain.Frame, workDir string) string {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		p.log.Warn("读取帧失败，跳过灰度预处理", zap.String("frame", f.Path), zap.Error(err))
		return f.Path
	}
	gray, err := imgx.GrayscalePNG(b)
	if err != nil {
		if errors.Is(err, imgx.ErrUnsupported) {
			p.log.Debug("图片格式无法解码，跳过灰度预处理", zap.String("frame", f.Path))
		} else {
			p.log.Warn("灰度预处理失败，使用原图", zap.String("frame", f.Path), zap.Error(err))
		}
		return f.Path
	}
	out := filepath.Join(workDir, fmt.Sprintf("gray_%06d.png", f.Index))
	if err := os.WriteFile(out, gray, 0o644); err != nil {
		p.log.Warn("写入灰度帧失败，使用原图", zap.String("frame", f.Path), zap.Error(err))
		return f.Path
	}
	return out
}

// numberResults 把结果集转换为报告条目；有效号码附带命中的国家码与地区（仅标注）。
func numberResults(set *aggregate.ResultSet, table number.Table) []domain.NumberResult {
	rows := set.Rows()
	out := make([]domain.NumberResult, 0, len(rows))
	for _, r := range rows {
		nr := domain.NumberResult{Number: r.Number, Status: r.Status}
		if r.Status == string(number.Valid) {
			if e, ok := table.Match(r.Number); ok {
				nr.CallingCode = e.Code
				nr.Region = number.RegionFor(e.Code)
			}
		}
		out = append(out, nr)
	}
	return out
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
