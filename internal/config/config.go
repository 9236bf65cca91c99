package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/numscan/internal/aggregate"
	"github.com/John-Robertt/numscan/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	OnErrorAbort = "abort"
	OnErrorSkip  = "skip"
)

const (
	DefaultOut       = "contacts.xlsx"
	DefaultWorkers   = 4
	DefaultFPS       = 1
	DefaultOCRLang   = "eng"
	DefaultOCRFormat = "text"
	DefaultLogLevel  = "info"

	// EnvPrefix 是环境变量覆盖层的统一前缀。
	EnvPrefix = "NUMSCAN_"
)

// 自动发现的配置文件名（按顺序，取第一个存在的）。
var discoverNames = []string{"numscan.json", "numscan.yaml", "numscan.yml"}

// CLIArgs 保留“是否显式指定”的信息，保证 CLI 能覆盖任意下层的值（包括零值）。
type CLIArgs struct {
	Inputs []string

	Out    string
	OutSet bool

	Mode    string
	ModeSet bool

	OnError    string
	OnErrorSet bool

	Workers    int
	WorkersSet bool

	// ConfigPath 非空时只读该文件，且文件必须存在。
	ConfigPath string

	Force bool
}

// FileConfig 对应 numscan.json / numscan.yaml。
type FileConfig struct {
	Inputs          []string       `json:"inputs" yaml:"inputs"`
	Out             string         `json:"out" yaml:"out"`
	Mode            string         `json:"mode" yaml:"mode"`
	OnError         string         `json:"on_error" yaml:"on_error"`
	Workers         int            `json:"workers" yaml:"workers"`
	FPS             int            `json:"fps" yaml:"fps"`
	FFmpeg          string         `json:"ffmpeg" yaml:"ffmpeg"`
	FFprobe         string         `json:"ffprobe" yaml:"ffprobe"`
	Tesseract       string         `json:"tesseract" yaml:"tesseract"`
	OCRFormat       string         `json:"ocr_format" yaml:"ocr_format"`
	OCRLang         string         `json:"ocr_lang" yaml:"ocr_lang"`
	OCRMinConf      *int           `json:"ocr_min_conf" yaml:"ocr_min_conf"`
	Grayscale       *bool          `json:"grayscale" yaml:"grayscale"`
	TempDir         string         `json:"temp_dir" yaml:"temp_dir"`
	CacheDir        string         `json:"cache_dir" yaml:"cache_dir"`
	LogLevel        string         `json:"log_level" yaml:"log_level"`
	MetricsTextfile string         `json:"metrics_textfile" yaml:"metrics_textfile"`
	OTLPEndpoint    string         `json:"otlp_endpoint" yaml:"otlp_endpoint"`
	ReportPath      string         `json:"report_path" yaml:"report_path"`
	Storage         *StorageConfig `json:"storage" yaml:"storage"`
}

// StorageConfig 是 S3 兼容对象存储的连接信息（用于 s3:// 输入与产物上传）。
type StorageConfig struct {
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
	UseSSL       bool   `json:"use_ssl" yaml:"use_ssl"`
	ReportBucket string `json:"report_bucket" yaml:"report_bucket"`
}

// envConfig 是 NUMSCAN_* 覆盖层；nil 表示未设置。
type envConfig struct {
	Out             *string  `env:"OUT"`
	Mode            *string  `env:"MODE"`
	OnError         *string  `env:"ON_ERROR"`
	Workers         *int     `env:"WORKERS"`
	FPS             *int     `env:"FPS"`
	FFmpeg          *string  `env:"FFMPEG"`
	FFprobe         *string  `env:"FFPROBE"`
	Tesseract       *string  `env:"TESSERACT"`
	OCRFormat       *string  `env:"OCR_FORMAT"`
	OCRLang         *string  `env:"OCR_LANG"`
	OCRMinConf      *int     `env:"OCR_MIN_CONF"`
	Grayscale       *bool    `env:"GRAYSCALE"`
	TempDir         *string  `env:"TEMP_DIR"`
	CacheDir        *string  `env:"CACHE_DIR"`
	LogLevel        *string  `env:"LOG_LEVEL"`
	MetricsTextfile *string  `env:"METRICS_TEXTFILE"`
	OTLPEndpoint    *string  `env:"OTLP_ENDPOINT"`
	ReportPath      *string  `env:"REPORT_PATH"`
	StorageEndpoint *string  `env:"STORAGE_ENDPOINT"`
	StorageAccess   *string  `env:"STORAGE_ACCESS_KEY"`
	StorageSecret   *string  `env:"STORAGE_SECRET_KEY"`
	StorageUseSSL   *bool    `env:"STORAGE_USE_SSL"`
	StorageBucket   *string  `env:"STORAGE_REPORT_BUCKET"`
	Inputs          []string `env:"INPUTS" envSeparator:","`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Cwd        string
	ConfigPath string // 实际读取的配置文件；未读取时为空

	Inputs  []string
	Out     string // clean + absolute
	Mode    aggregate.Mode
	OnError string
	Workers int
	Force   bool

	FPS        int
	FFmpeg     string
	FFprobe    string
	Tesseract  string
	OCRFormat  string
	OCRLang    string
	OCRMinConf int
	Grayscale  bool

	TempDir         string
	CacheDir        string
	LogLevel        string
	MetricsTextfile string
	OTLPEndpoint    string
	ReportPath      string

	Storage StorageConfig
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件与 NUMSCAN_* 环境变量，并与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：默认值 < 配置文件 < 环境变量 < CLI。
//
// 配置文件发现：
// - CLI --config：必须存在，否则 config_not_found
// - 否则依次尝试 <cwd>/numscan.json、numscan.yaml、numscan.yml（均可选）
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return loadEffective(cwd, cli, nil)
}

// loadEffective 的 environ 为 nil 时读取进程环境变量。
func loadEffective(cwd string, cli CLIArgs, environ map[string]string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath, fc, err := discover(cwdAbs, cli.ConfigPath)
	if err != nil {
		return EffectiveConfig{}, err
	}

	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("环境变量无效：%w", err)}
	}

	eff := defaults(cwdAbs)
	eff.ConfigPath = cfgPath
	applyFile(&eff, fc, cfgPath)
	applyEnv(&eff, ec)
	applyCLI(&eff, cli)

	if err := normalize(&eff); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return eff, nil
}

func defaults(cwd string) EffectiveConfig {
	return EffectiveConfig{
		Cwd:       cwd,
		Out:       DefaultOut,
		Mode:      aggregate.ModeValidate,
		OnError:   OnErrorAbort,
		Workers:   DefaultWorkers,
		FPS:       DefaultFPS,
		FFmpeg:    "ffmpeg",
		FFprobe:   "ffprobe",
		Tesseract: "tesseract",
		OCRFormat: DefaultOCRFormat,
		OCRLang:   DefaultOCRLang,
		LogLevel:  DefaultLogLevel,
	}
}

func discover(cwd, explicit string) (string, FileConfig, error) {
	if strings.TrimSpace(explicit) != "" {
		p := absCleanFrom(cwd, explicit)
		fc, exists, err := readFileConfig(p)
		if err != nil {
			return "", FileConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if !exists {
			return "", FileConfig{}, &Error{Code: ErrCodeNotFound, Path: p, Err: os.ErrNotExist}
		}
		return p, fc, nil
	}

	for _, name := range discoverNames {
		p := filepath.Join(cwd, name)
		fc, exists, err := readFileConfig(p)
		if err != nil {
			return "", FileConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
		}
		if exists {
			return p, fc, nil
		}
	}
	return "", FileConfig{}, nil
}

// applyFile 合并配置文件层；文件里的相对路径以配置文件所在目录为基准。
func applyFile(eff *EffectiveConfig, fc FileConfig, cfgPath string) {
	base := eff.Cwd
	if cfgPath != "" {
		base = filepath.Dir(cfgPath)
	}
	rel := func(p string) string {
		if strings.TrimSpace(p) == "" {
			return ""
		}
		return absCleanFrom(base, p)
	}

	for _, in := range fc.Inputs {
		if isRemote(in) {
			eff.Inputs = append(eff.Inputs, strings.TrimSpace(in))
		} else if s := rel(in); s != "" {
			eff.Inputs = append(eff.Inputs, s)
		}
	}
	setStr(&eff.Out, rel(fc.Out))
	setStr((*string)(&eff.Mode), fc.Mode)
	setStr(&eff.OnError, fc.OnError)
	if fc.Workers != 0 {
		eff.Workers = fc.Workers
	}
	if fc.FPS != 0 {
		eff.FPS = fc.FPS
	}
	setStr(&eff.FFmpeg, fc.FFmpeg)
	setStr(&eff.FFprobe, fc.FFprobe)
	setStr(&eff.Tesseract, fc.Tesseract)
	setStr(&eff.OCRFormat, fc.OCRFormat)
	setStr(&eff.OCRLang, fc.OCRLang)
	if fc.OCRMinConf != nil {
		eff.OCRMinConf = *fc.OCRMinConf
	}
	if fc.Grayscale != nil {
		eff.Grayscale = *fc.Grayscale
	}
	setStr(&eff.TempDir, rel(fc.TempDir))
	setStr(&eff.CacheDir, rel(fc.CacheDir))
	setStr(&eff.LogLevel, fc.LogLevel)
	setStr(&eff.MetricsTextfile, rel(fc.MetricsTextfile))
	setStr(&eff.OTLPEndpoint, fc.OTLPEndpoint)
	setStr(&eff.ReportPath, rel(fc.ReportPath))
	if fc.Storage != nil {
		eff.Storage = *fc.Storage
	}
}

func applyEnv(eff *EffectiveConfig, ec envConfig) {
	if len(ec.Inputs) > 0 {
		eff.Inputs = append([]string(nil), ec.Inputs...)
	}
	setPtr(&eff.Out, ec.Out)
	if ec.Mode != nil {
		eff.Mode = aggregate.Mode(*ec.Mode)
	}
	setPtr(&eff.OnError, ec.OnError)
	setPtr(&eff.Workers, ec.Workers)
	setPtr(&eff.FPS, ec.FPS)
	setPtr(&eff.FFmpeg, ec.FFmpeg)
	setPtr(&eff.FFprobe, ec.FFprobe)
	setPtr(&eff.Tesseract, ec.Tesseract)
	setPtr(&eff.OCRFormat, ec.OCRFormat)
	setPtr(&eff.OCRLang, ec.OCRLang)
	setPtr(&eff.OCRMinConf, ec.OCRMinConf)
	setPtr(&eff.Grayscale, ec.Grayscale)
	setPtr(&eff.TempDir, ec.TempDir)
	setPtr(&eff.CacheDir, ec.CacheDir)
	setPtr(&eff.LogLevel, ec.LogLevel)
	setPtr(&eff.MetricsTextfile, ec.MetricsTextfile)
	setPtr(&eff.OTLPEndpoint, ec.OTLPEndpoint)
	setPtr(&eff.ReportPath, ec.ReportPath)
	setPtr(&eff.Storage.Endpoint, ec.StorageEndpoint)
	setPtr(&eff.Storage.AccessKey, ec.StorageAccess)
	setPtr(&eff.Storage.SecretKey, ec.StorageSecret)
	setPtr(&eff.Storage.UseSSL, ec.StorageUseSSL)
	setPtr(&eff.Storage.ReportBucket, ec.StorageBucket)
}

func applyCLI(eff *EffectiveConfig, cli CLIArgs) {
	if len(cli.Inputs) > 0 {
		eff.Inputs = append([]string(nil), cli.Inputs...)
	}
	if cli.OutSet {
		eff.Out = cli.Out
	}
	if cli.ModeSet {
		eff.Mode = aggregate.Mode(cli.Mode)
	}
	if cli.OnErrorSet {
		eff.OnError = cli.OnError
	}
	if cli.WorkersSet {
		eff.Workers = cli.Workers
	}
	eff.Force = cli.Force
}

// normalize 做最小规范化与校验：路径变为绝对路径、枚举值校验、数值截断。
func normalize(eff *EffectiveConfig) error {
	mode, err := aggregate.ParseMode(strings.ToLower(strings.TrimSpace(string(eff.Mode))))
	if err != nil {
		return err
	}
	eff.Mode = mode

	eff.OnError = strings.ToLower(strings.TrimSpace(eff.OnError))
	if eff.OnError != OnErrorAbort && eff.OnError != OnErrorSkip {
		return fmt.Errorf("on_error 只能是 abort 或 skip，实际是 %q", eff.OnError)
	}

	eff.OCRFormat = strings.ToLower(strings.TrimSpace(eff.OCRFormat))
	if eff.OCRFormat != "text" && eff.OCRFormat != "hocr" {
		return fmt.Errorf("ocr_format 只能是 text 或 hocr，实际是 %q", eff.OCRFormat)
	}
	if eff.OCRMinConf < 0 || eff.OCRMinConf > 100 {
		return fmt.Errorf("ocr_min_conf 必须在 [0, 100] 内，实际是 %d", eff.OCRMinConf)
	}
	if strings.TrimSpace(eff.OCRLang) == "" {
		eff.OCRLang = DefaultOCRLang
	}

	// 范围 [1, 32]；超出截断。
	if eff.Workers < 1 {
		eff.Workers = 1
	}
	if eff.Workers > 32 {
		eff.Workers = 32
	}
	if eff.FPS < 1 {
		return fmt.Errorf("fps 必须 >= 1，实际是 %d", eff.FPS)
	}

	if _, err := zapcore.ParseLevel(eff.LogLevel); err != nil {
		return fmt.Errorf("log_level 无效：%q", eff.LogLevel)
	}

	if strings.TrimSpace(eff.Out) == "" {
		eff.Out = DefaultOut
	}
	eff.Out = absCleanFrom(eff.Cwd, eff.Out)
	if !strings.EqualFold(filepath.Ext(eff.Out), ".xlsx") {
		return fmt.Errorf("out 必须是 .xlsx 文件，实际是 %q", eff.Out)
	}

	for _, p := range []*string{&eff.TempDir, &eff.CacheDir, &eff.MetricsTextfile, &eff.ReportPath} {
		if strings.TrimSpace(*p) != "" {
			*p = absCleanFrom(eff.Cwd, *p)
		}
	}

	for _, in := range eff.Inputs {
		if isRemote(in) && strings.TrimSpace(eff.Storage.Endpoint) == "" {
			return fmt.Errorf("输入 %q 需要配置 storage.endpoint", in)
		}
	}
	return nil
}

func isRemote(in string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(in)), "s3://")
}

func setStr(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 按扩展名解析 JSON 或 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
