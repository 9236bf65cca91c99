package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/numscan/internal/infra/fsx"
)

// Store 提供 <root>/ocr/<engine>/<key>.txt 下的 OCR 文本缓存。
//
// 约束：
// - Root 为空表示禁用：读总是 miss，写是 no-op
// - ReadOnly=true 时写返回 ErrReadOnly
type Store struct {
	Root     string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	root = strings.TrimSpace(root)
	if root != "" {
		root = filepath.Clean(root)
	}
	return Store{Root: root, ReadOnly: readOnly}
}

func (s Store) Enabled() bool { return s.Root != "" }

// Key 由图片内容与识别参数（语言等）共同决定；同一张图换语言必须 miss。
func Key(image io.Reader, params ...string) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, image); err != nil {
		return "", err
	}
	for _, p := range params {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// KeyFile 对文件内容计算 Key。
func KeyFile(path string, params ...string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Key(f, params...)
}

// TextPath 返回缓存条目的绝对路径。
func (s Store) TextPath(engine, key string) (string, error) {
	e, err := cleanEngine(engine)
	if err != nil {
		return "", err
	}
	if !keyRE.MatchString(key) {
		return "", fmt.Errorf("非法缓存 key：%q", key)
	}
	return filepath.Join(s.Root, "ocr", e, key+".txt"), nil
}

func (s Store) ReadText(engine, key string) (string, bool, error) {
	if !s.Enabled() {
		return "", false, nil
	}
	path, err := s.TextPath(engine, key)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (s Store) WriteText(engine, key, text string) error {
	if !s.Enabled() {
		return nil
	}
	if s.ReadOnly {
		return ErrReadOnly
	}
	path, err := s.TextPath(engine, key)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), []byte(text))
}

var (
	engineNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)
	keyRE        = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

func cleanEngine(e string) (string, error) {
	e = strings.ToLower(strings.TrimSpace(e))
	if e == "" {
		return "", fmt.Errorf("engine 不能为空")
	}
	// 避免路径穿越。
	if !engineNameRE.MatchString(e) {
		return "", fmt.Errorf("非法 engine：%q", e)
	}
	return e, nil
}
