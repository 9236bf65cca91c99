package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/numscan/internal/aggregate"
	"github.com/John-Robertt/numscan/internal/app/planner"
	"github.com/John-Robertt/numscan/internal/app/run"
	"github.com/John-Robertt/numscan/internal/config"
	"github.com/John-Robertt/numscan/internal/domain"
	"github.com/John-Robertt/numscan/internal/infra/fsx"
	"github.com/John-Robertt/numscan/internal/infra/logx"
	"github.com/John-Robertt/numscan/internal/infra/metrics"
	"github.com/John-Robertt/numscan/internal/infra/tracing"
	"github.com/John-Robertt/numscan/internal/sheet"
)

// version 由 -ldflags "-X main.version=..." 注入。
var version = "dev"

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(os.Stdout)
		return
	}

	switch args[0] {
	case "run":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		code := newCLI().run(ctx, args[1:])
		stop()
		if code != 0 {
			os.Exit(code)
		}
	case "version":
		fmt.Fprintln(os.Stdout, version)
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

// cli 把进程级依赖（输出流、TTY 判定、外部工具装配）集中起来，便于在进程内测试。
type cli struct {
	stdout io.Writer
	stderr io.Writer

	stdoutTTY bool
	stderrTTY bool

	getwd   func() (string, error)
	newDeps depsFactory
}

func newCLI() *cli {
	return &cli{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdoutTTY: isTTY(os.Stdout),
		stderrTTY: isTTY(os.Stderr),
		getwd:     os.Getwd,
		newDeps:   buildDeps,
	}
}

func (c *cli) run(ctx context.Context, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage(c.stdout)
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		printRunUsage(c.stderr)
		return 2
	}

	cwd, err := c.getwd()
	if err != nil {
		fmt.Fprintf(c.stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ra.toCLIArgs())
	if err != nil {
		c.emitReport(reportFailure(err, config.Code(err)))
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 1
	}
	if len(eff.Inputs) == 0 {
		fmt.Fprintln(c.stderr, "没有输入文件：请在命令行或配置文件 inputs 中指定图片/视频")
		printRunUsage(c.stderr)
		return 2
	}

	// 提前检查输出是否已存在，避免处理完才失败；写出时仍做原子 no-overwrite 兜底。
	if !eff.Force {
		if _, err := os.Stat(eff.Out); err == nil {
			fmt.Fprintf(c.stderr, "%v\n", &fsx.ExistsError{Path: eff.Out})
			return 1
		}
	}

	log, err := logx.New(eff.LogLevel, c.stderr, c.stderrTTY)
	if err != nil {
		fmt.Fprintf(c.stderr, "初始化日志失败：%v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	shutdownTracing, err := tracing.Init(ctx, eff.OTLPEndpoint, version)
	if err != nil {
		log.Warn("tracing 初始化失败，继续运行", zap.Error(err))
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				log.Warn("tracing 关闭失败", zap.Error(err))
			}
		}()
	}

	var m *metrics.Metrics
	if eff.MetricsTextfile != "" {
		m = metrics.New()
	}

	deps, err := c.newDeps(eff, log, m)
	if err != nil {
		fmt.Fprintf(c.stderr, "初始化失败：%v\n", err)
		return 1
	}
	if deps.Logger == nil {
		deps.Logger = log
	}
	if deps.Metrics == nil {
		deps.Metrics = m
	}

	progressW, interactive := c.progressWriter()
	var obs run.Observer
	if interactive {
		ui := newProgressUI(progressW)
		defer ui.Close()
		obs = ui
	}

	rr, set, runErr := run.ExecuteWithObserver(ctx, eff, deps.Deps, obs)
	defer c.writeMetrics(m, eff.MetricsTextfile, log)

	if runErr != nil {
		if len(rr.Items) == 0 {
			rr.Items = append(rr.Items, failureItem(runErr, errorCode(runErr)))
			rr.Finalize()
		}
		c.emitReport(rr)
		fmt.Fprintf(c.stderr, "运行失败：%v\n", runErr)
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(c.stderr, "已取消：未写出表格")
		}
		return 1
	}

	if err := writeSheet(eff, set); err != nil {
		c.emitReport(rr)
		fmt.Fprintf(c.stderr, "写出表格失败：%v\n", err)
		return 1
	}

	if eff.ReportPath != "" {
		if err := writeReportFile(eff.ReportPath, rr); err != nil {
			c.emitReport(rr)
			fmt.Fprintf(c.stderr, "写入报告失败：%v\n", err)
			return 1
		}
	}

	if deps.Uploader != nil {
		for _, p := range []string{eff.Out, eff.ReportPath} {
			if p == "" {
				continue
			}
			key, err := deps.Uploader.UploadReport(ctx, rr.RunID, p)
			if err != nil {
				log.Warn("上传产物失败", zap.String("path", p), zap.Error(err))
				continue
			}
			if key != "" {
				log.Info("产物已上传", zap.String("key", key))
			}
		}
	}

	c.emitReport(rr)
	msgW := c.stderr
	if interactive {
		msgW = progressW
	}
	fmt.Fprint(msgW, completionMessage(eff.Out, eff.Mode, set))

	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Inputs []string

	Out    string
	OutSet bool

	Mode    string
	ModeSet bool

	OnError    string
	OnErrorSet bool

	Workers    int
	WorkersSet bool

	Config string
	Force  bool
}

func (ra runArgs) toCLIArgs() config.CLIArgs {
	return config.CLIArgs{
		Inputs:     ra.Inputs,
		Out:        ra.Out,
		OutSet:     ra.OutSet,
		Mode:       ra.Mode,
		ModeSet:    ra.ModeSet,
		OnError:    ra.OnError,
		OnErrorSet: ra.OnErrorSet,
		Workers:    ra.Workers,
		WorkersSet: ra.WorkersSet,
		ConfigPath: ra.Config,
		Force:      ra.Force,
	}
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	// value 同时支持 "--flag v" 与 "--flag=v"。
	value := func(i *int, a, name string) (string, error) {
		if strings.HasPrefix(a, name+"=") {
			return strings.TrimPrefix(a, name+"="), nil
		}
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", name)
		}
		*i++
		return args[*i], nil
	}
	is := func(a, name string) bool { return a == name || strings.HasPrefix(a, name+"=") }

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case is(a, "--out"), a == "-o":
			name := "--out"
			if a == "-o" {
				name = "-o"
			}
			v, err := value(&i, a, name)
			if err != nil {
				return runArgs{}, err
			}
			if strings.TrimSpace(v) == "" {
				return runArgs{}, fmt.Errorf("--out 不能为空")
			}
			ra.Out, ra.OutSet = v, true
		case is(a, "--mode"):
			v, err := value(&i, a, "--mode")
			if err != nil {
				return runArgs{}, err
			}
			if _, err := aggregate.ParseMode(v); err != nil {
				return runArgs{}, err
			}
			ra.Mode, ra.ModeSet = v, true
		case is(a, "--on-error"):
			v, err := value(&i, a, "--on-error")
			if err != nil {
				return runArgs{}, err
			}
			if v != config.OnErrorAbort && v != config.OnErrorSkip {
				return runArgs{}, fmt.Errorf("--on-error 只能是 abort 或 skip，实际是 %q", v)
			}
			ra.OnError, ra.OnErrorSet = v, true
		case is(a, "--workers"):
			v, err := value(&i, a, "--workers")
			if err != nil {
				return runArgs{}, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return runArgs{}, fmt.Errorf("--workers 必须是整数，实际是 %q", v)
			}
			ra.Workers, ra.WorkersSet = n, true
		case is(a, "--config"):
			v, err := value(&i, a, "--config")
			if err != nil {
				return runArgs{}, err
			}
			ra.Config = v
		case a == "--force":
			ra.Force = true
		case a == "--":
			ra.Inputs = append(ra.Inputs, args[i+1:]...)
			i = len(args)
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			ra.Inputs = append(ra.Inputs, a)
		}
	}
	return ra, nil
}

// completionMessage 生成结束提示：保存了多少号码；validate 模式下列出无法校验的号码（最多 10 个）。
func completionMessage(out string, mode aggregate.Mode, set *aggregate.ResultSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "已保存 %d 个号码到 %s\n", set.Len(), out)
	if mode != aggregate.ModeValidate {
		return b.String()
	}

	invalid := set.Invalid()
	switch {
	case len(invalid) == 0:
		b.WriteString("全部号码均通过校验\n")
	case len(invalid) <= 10:
		fmt.Fprintf(&b, "以下号码未通过校验：%s\n", strings.Join(invalid, ", "))
	default:
		fmt.Fprintf(&b, "%d 个号码未通过校验：%s ... 以及其余 %d 个\n",
			len(invalid), strings.Join(invalid[:10], ", "), len(invalid)-10)
	}
	return b.String()
}

func writeSheet(eff config.EffectiveConfig, set *aggregate.ResultSet) error {
	rows := set.Rows()
	withStatus := eff.Mode == aggregate.ModeValidate
	return fsx.WriteAtomic(filepath.Dir(eff.Out), filepath.Base(eff.Out), eff.Force, func(w io.Writer) error {
		return sheet.Write(w, rows, withStatus)
	})
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}

func (c *cli) writeMetrics(m *metrics.Metrics, path string, log *zap.Logger) {
	if err := m.WriteTextfile(path); err != nil {
		log.Warn("写出指标失败", zap.String("path", path), zap.Error(err))
	}
}

func (c *cli) emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：media=%d frames=%d numbers=%d valid=%d invalid=%d failed=%d\n",
		rr.Summary.Media, rr.Summary.Frames, rr.Summary.Numbers, rr.Summary.Valid, rr.Summary.Invalid, rr.Summary.Failed,
	)

	if c.stdoutTTY {
		fmt.Fprint(c.stdout, summary)
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed {
				continue
			}
			key := it.Input
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(c.stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	_ = json.NewEncoder(c.stdout).Encode(rr)
	fmt.Fprint(c.stderr, summary)
}

// reportFailure 为“尚未进入 run 就失败”（参数/配置）的情况构造合成报告。
func reportFailure(err error, code string) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		StartedAt:  now,
		FinishedAt: now,
		Items:      []domain.MediaResult{failureItem(err, code)},
	}
	rr.Finalize()
	return rr
}

// failureItem 把 run 级错误表示为一个失败条目；能定位到输入时带上 input。
func failureItem(err error, code string) domain.MediaResult {
	it := domain.MediaResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  err.Error(),
	}
	var ue *planner.UnsupportedFormatError
	var ie *planner.InputError
	switch {
	case errors.As(err, &ue):
		it.Input = ue.Input
	case errors.As(err, &ie):
		it.Input = ie.Input
	}
	return it
}

func errorCode(err error) string {
	var ue *planner.UnsupportedFormatError
	var te *run.ToolError
	switch {
	case errors.As(err, &ue):
		return domain.ErrCodeUnsupportedFormat
	case errors.As(err, &te):
		return te.Code()
	case errors.Is(err, context.Canceled):
		return domain.ErrCodeCanceled
	default:
		return domain.ErrCodeIOFailed
	}
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  numscan run [inputs...] [--out contacts.xlsx] [--mode validate|extract] [--on-error abort|skip]
              [--workers N] [--config numscan.yaml] [--force]

命令：
  run      从图片/视频中识别电话号码并导出表格
  version  打印版本

使用 "numscan run --help" 查看详细说明。
`)
}

func printRunUsage(w io.Writer) {
	fmt.Fprint(w, `用法：
  numscan run [inputs...] [flags]

输入：
  图片（png/jpg/jpeg/bmp/tiff）、视频（mp4/avi/mov/mkv）、目录（递归展开），
  或 s3://bucket/key（需配置 storage）

参数：
  -o, --out       输出表格路径（默认 contacts.xlsx）
  --mode          validate（默认，两列含校验状态）| extract（仅号码，升序）
  --on-error      abort（默认，任一媒体失败即终止）| skip（记录失败并继续）
  --workers       单个视频内并发识别的帧数（默认 4，范围 1-32）
  --config        配置文件路径（默认读取 ./numscan.json 或 ./numscan.yaml）
  --force         允许覆盖已存在的输出文件
  -h, --help      显示帮助

环境变量 NUMSCAN_* 覆盖配置文件，命令行参数覆盖环境变量。
`)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (c *cli) progressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if c.stderrTTY {
		return c.stderr, true
	}
	if c.stdoutTTY {
		return c.stdout, true
	}
	return nil, false
}
