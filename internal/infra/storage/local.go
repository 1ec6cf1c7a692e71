package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStore 把附件写入本地目录，由 HTTP 服务以静态文件方式提供
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore 创建本地存储，必要时创建根目录
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root 返回存储根目录
func (s *LocalStore) Root() string { return s.root }

// Put 写入文件。先写临时文件再重命名，避免读到半截文件。
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	destPath := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("local: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("local: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	written, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("local: write %s: %w", key, errors.Join(copyErr, closeErr))
	}
	if size >= 0 && written != size {
		os.Remove(tmpPath)
		return "", fmt.Errorf("local: size mismatch for %s: expected %d bytes, got %d", key, size, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("local: rename %s: %w", key, err)
	}

	logrus.WithFields(logrus.Fields{"key": key, "size": written, "content_type": contentType}).Debug("Attachment stored locally")
	return s.baseURL + "/" + key, nil
}

// Delete 删除文件，文件不存在时忽略
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	key, err := keyFromURL(s.baseURL, url)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("local: delete %s: %w", key, err)
	}
	return nil
}

// Compile-time check
var _ Store = (*LocalStore)(nil)
