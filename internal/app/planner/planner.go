package planner

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/numscan/internal/domain"
	"github.com/John-Robertt/numscan/internal/scan"
)

// UnsupportedFormatError 表示显式输入的扩展名不在可识别集合内。
// 按约定：出现即中止整个 run，不写任何输出。
type UnsupportedFormatError struct {
	Input string
	Ext   string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("不支持的文件格式：%s（扩展名 %q）；请提供视频（mp4/avi/mov/mkv）或图片（png/jpg/jpeg/bmp/tiff）", filepath.Base(e.Input), e.Ext)
}

// InputError 表示输入无法读取（不存在、无权限、s3 URI 非法等）。
type InputError struct {
	Input string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("无法读取输入 %q：%v", e.Input, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// ErrNoInputs 表示没有任何输入。
var ErrNoInputs = errors.New("没有输入文件")

// Plan 把用户给出的输入展开为确定性的媒体列表（不做任何读取/解码）。
//
// 规则：
// - 目录：递归展开，只收集可识别媒体
// - 文件：扩展名不可识别 => *UnsupportedFormatError
// - s3://bucket/key：仅当 remoteOK=true 时接受，按 key 的扩展名分类
// - 相同的绝对路径/对象只保留第一次出现
func Plan(cwd string, inputs []string, remoteOK bool) ([]domain.MediaFile, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInputs
	}

	seen := make(map[string]struct{}, len(inputs))
	out := make([]domain.MediaFile, 0, len(inputs))
	add := func(m domain.MediaFile) {
		key := m.AbsPath
		if m.Remote != nil {
			key = "s3://" + m.Remote.Bucket + "/" + m.Remote.Key
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}

	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}

		if IsRemote(in) {
			m, err := planRemote(in, remoteOK)
			if err != nil {
				return nil, err
			}
			add(m)
			continue
		}

		abs := in
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, abs)
		}
		abs = filepath.Clean(abs)

		fi, err := os.Stat(abs)
		if err != nil {
			return nil, &InputError{Input: in, Err: err}
		}

		if fi.IsDir() {
			files, err := scan.ScanDir(abs)
			if err != nil {
				return nil, &InputError{Input: in, Err: err}
			}
			for _, f := range files {
				add(f)
			}
			continue
		}

		ext := strings.ToLower(filepath.Ext(abs))
		kind, ok := scan.KindOf(ext)
		if !ok {
			return nil, &UnsupportedFormatError{Input: in, Ext: ext}
		}
		add(domain.MediaFile{Input: in, AbsPath: abs, Kind: kind, Ext: ext})
	}

	if len(out) == 0 {
		return nil, ErrNoInputs
	}
	return out, nil
}

// IsRemote 判断输入是否为 s3:// 对象标识。
func IsRemote(in string) bool {
	return strings.HasPrefix(strings.ToLower(in), "s3://")
}

func planRemote(in string, remoteOK bool) (domain.MediaFile, error) {
	if !remoteOK {
		return domain.MediaFile{}, &InputError{Input: in, Err: errors.New("未配置对象存储（storage.endpoint），无法读取 s3:// 输入")}
	}
	obj, err := ParseRemote(in)
	if err != nil {
		return domain.MediaFile{}, &InputError{Input: in, Err: err}
	}
	ext := strings.ToLower(path.Ext(obj.Key))
	kind, ok := scan.KindOf(ext)
	if !ok {
		return domain.MediaFile{}, &UnsupportedFormatError{Input: in, Ext: ext}
	}
	return domain.MediaFile{Input: in, Remote: &obj, Kind: kind, Ext: ext}, nil
}

// ParseRemote 解析 s3://bucket/key。
func ParseRemote(in string) (domain.RemoteObject, error) {
	u, err := url.Parse(in)
	if err != nil {
		return domain.RemoteObject{}, err
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return domain.RemoteObject{}, fmt.Errorf("s3 URI 必须形如 s3://bucket/key，实际是 %q", in)
	}
	return domain.RemoteObject{Bucket: bucket, Key: key}, nil
}
