package ocr

import (
	"fmt"
	"sort"
	"strings"
)

// Registry 是识别引擎的只读注册表（按 name 索引）。
type Registry struct {
	byName map[string]Engine
}

func NewRegistry(engines ...Engine) (Registry, error) {
	byName := make(map[string]Engine, len(engines))
	for _, e := range engines {
		if e == nil {
			return Registry{}, fmt.Errorf("engine 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(e.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("engine.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 engine：%q", name)
		}
		byName[name] = e
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Engine, bool) {
	if r.byName == nil {
		return nil, false
	}
	e, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

// Names 返回已注册的引擎名（升序），用于错误提示。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
