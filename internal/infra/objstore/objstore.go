// Package objstore 封装 S3 兼容对象存储（MinIO）：下载 s3:// 输入、上传运行产物。
package objstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/John-Robertt/numscan/internal/domain"
)

type Config struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	ReportBucket string
}

// Enabled 表示是否配置了对象存储。
func (c Config) Enabled() bool { return strings.TrimSpace(c.Endpoint) != "" }

type Store struct {
	client       *miniogo.Client
	reportBucket string
}

func New(cfg Config) (*Store, error) {
	if !cfg.Enabled() {
		return nil, errors.New("未配置对象存储 endpoint")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, reportBucket: cfg.ReportBucket}, nil
}

// Download 把对象下载到本地 dest（目录需已存在）。
func (s *Store) Download(ctx context.Context, obj domain.RemoteObject, dest string) error {
	if err := s.client.FGetObject(ctx, obj.Bucket, obj.Key, dest, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download s3://%s/%s: %w", obj.Bucket, obj.Key, err)
	}
	return nil
}

// UploadReport 把本地产物上传到 report bucket；未配置 bucket 时不做任何事并返回空 key。
func (s *Store) UploadReport(ctx context.Context, runID, localPath string) (string, error) {
	if s.reportBucket == "" {
		return "", nil
	}
	key := ReportKey(runID, localPath)
	_, err := s.client.FPutObject(ctx, s.reportBucket, key, localPath, miniogo.PutObjectOptions{
		ContentType: ContentType(localPath),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// ReportKey 以 runID 为前缀，避免不同 run 的产物互相覆盖。
func ReportKey(runID, localPath string) string {
	return path.Join("runs", runID, path.Base(strings.ReplaceAll(localPath, "\\", "/")))
}

func ContentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
