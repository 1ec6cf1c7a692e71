package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"realtime-chat/internal/domain"
	"realtime-chat/internal/infra/storage"

	"github.com/sirupsen/logrus"
)

// Upload 是一个待保存的上传文件
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SendInput 是发送消息 (私信或群消息) 的输入。图片和文件各最多一个。
type SendInput struct {
	Text  string
	Image *Upload
	File  *Upload
}

func (in SendInput) empty() bool {
	return strings.TrimSpace(in.Text) == "" && in.Image == nil && in.File == nil
}

// attach 上传图片和文件并写入消息。返回已上传的 URL，以便后续失败时清理。
func attach(ctx context.Context, store storage.Store, msg *domain.Message, in SendInput) ([]string, error) {
	var uploaded []string
	if in.Image != nil {
		if !strings.HasPrefix(in.Image.ContentType, "image/") {
			return nil, fmt.Errorf("%w: image must have an image/* content type", ErrInvalidInput)
		}
		url, err := store.Put(ctx, storage.NewObjectKey("images", in.Image.Name), in.Image.Body, in.Image.Size, in.Image.ContentType)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		msg.Image = url
		uploaded = append(uploaded, url)
	}
	if in.File != nil {
		url, err := store.Put(ctx, storage.NewObjectKey("files", in.File.Name), in.File.Body, in.File.Size, in.File.ContentType)
		if err != nil {
			return uploaded, fmt.Errorf("upload file: %w", err)
		}
		msg.File = &domain.FileAttachment{
			URL:          url,
			OriginalName: in.File.Name,
			MimeType:     in.File.ContentType,
			Size:         in.File.Size,
			IsDocument:   domain.IsDocumentName(in.File.Name),
		}
		uploaded = append(uploaded, url)
	}
	return uploaded, nil
}

// attachmentURLs 返回消息引用的所有附件 URL
func attachmentURLs(msg *domain.Message) []string {
	var urls []string
	if msg.Image != "" {
		urls = append(urls, msg.Image)
	}
	if msg.File != nil && msg.File.URL != "" {
		urls = append(urls, msg.File.URL)
	}
	return urls
}

// cleanup 把附件交给后台任务删除；没有配置清理器或入队失败时只记录日志
func cleanup(ctx context.Context, cleaner AttachmentCleaner, urls []string) {
	if cleaner == nil || len(urls) == 0 {
		return
	}
	if err := cleaner.EnqueueAttachmentCleanup(ctx, urls); err != nil {
		logrus.WithError(err).WithField("urls", urls).Warn("Failed to enqueue attachment cleanup")
	}
}
