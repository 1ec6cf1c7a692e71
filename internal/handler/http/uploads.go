package http

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"realtime-chat/internal/service"

	"github.com/gin-gonic/gin"
)

// maxUploadBytes 是单个发送请求 (文本+图片+文件) 的大小上限
const maxUploadBytes = 25 << 20

// parseSendInput 从 multipart 表单读取 text、image 和 file。
// 返回的 closer 必须在 Service 调用结束后执行。
func parseSendInput(c *gin.Context) (service.SendInput, func(), error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	var in service.SendInput
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	in.Text = c.PostForm("text")
	for _, field := range []string{"image", "file"} {
		header, err := c.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			closeAll()
			return in, nil, fmt.Errorf("%w: %s: %v", service.ErrInvalidInput, field, err)
		}
		f, err := header.Open()
		if err != nil {
			closeAll()
			return in, nil, fmt.Errorf("%w: open %s: %v", service.ErrInvalidInput, field, err)
		}
		opened = append(opened, f)
		up := &service.Upload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        f,
		}
		if field == "image" {
			in.Image = up
		} else {
			in.File = up
		}
	}
	return in, closeAll, nil
}
