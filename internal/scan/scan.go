package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/numscan/internal/domain"
)

// KindOf 按扩展名（大小写不敏感）判断媒体类型。
//
// 视频：.mp4 .avi .mov .mkv
// 图片：.png .jpg .jpeg .bmp .tiff
func KindOf(ext string) (domain.MediaKind, bool) {
	switch strings.ToLower(ext) {
	case ".mp4", ".avi", ".mov", ".mkv":
		return domain.KindVideo, true
	case ".png", ".jpg", ".jpeg", ".bmp", ".tiff":
		return domain.KindImage, true
	default:
		return "", false
	}
}

// ScanDir 递归扫描 root 下的可识别媒体文件。
//
// 规则：
// - 不支持的扩展名直接跳过（目录展开不是“显式输入”，不因此报错）
// - 以 '.' 开头的目录整体跳过（缓存/临时目录通常如此命名）
// - 只做 stat，不读文件内容
func ScanDir(root string) ([]domain.MediaFile, error) {
	root = filepath.Clean(root)

	files := make([]domain.MediaFile, 0, 64)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		kind, ok := KindOf(ext)
		if !ok {
			return nil
		}

		files = append(files, domain.MediaFile{
			Input:   path,
			AbsPath: path,
			Kind:    kind,
			Ext:     ext,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同文件系统的遍历差异。
	sort.Slice(files, func(i, j int) bool { return files[i].AbsPath < files[j].AbsPath })
	return files, nil
}
