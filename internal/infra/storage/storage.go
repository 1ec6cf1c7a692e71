// Package storage 保存消息附件 (图片和文件)，支持 S3 和本地目录两种后端。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrForeignURL 表示 URL 不属于当前存储后端，无法删除
	ErrForeignURL = errors.New("storage: url does not belong to this store")
	// ErrInvalidKey 表示对象键为空或试图跳出存储根目录
	ErrInvalidKey = errors.New("storage: invalid object key")
)

// Store 是附件存储后端
type Store interface {
	// Put 保存对象并返回可公开访问的 URL
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	// Delete 根据 Put 返回的 URL 删除对象；对象不存在时不报错
	Delete(ctx context.Context, url string) error
}

// Config 选择并配置存储后端
type Config struct {
	Type string // "s3" 或 "local"

	S3Bucket          string
	S3Region          string
	S3Prefix          string
	S3Endpoint        string
	S3PublicURL       string
	S3AccessKeyID     string
	S3SecretAccessKey string

	LocalDir     string
	LocalBaseURL string
}

// NewFromConfig 根据配置创建存储后端
func NewFromConfig(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires S3_BUCKET to be set")
		}
		return NewS3Store(ctx, cfg)
	case "local", "":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local storage requires LOCAL_STORAGE_DIR to be set")
		}
		return NewLocalStore(cfg.LocalDir, cfg.LocalBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewObjectKey 为上传的文件生成唯一的对象键：<kind>/<uuid>/<清理后的文件名>
func NewObjectKey(kind, originalName string) string {
	return path.Join(kind, uuid.NewString(), sanitizeName(originalName))
}

// sanitizeName 去掉路径部分，只保留字母、数字和少量符号
func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// keyFromURL 从公开 URL 中还原对象键
func keyFromURL(baseURL, url string) (string, error) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(url, prefix)
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." || part == "" {
			return ErrInvalidKey
		}
	}
	return nil
}
