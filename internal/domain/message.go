package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Message 是一条持久化的消息记录。
// 私信设置 ReceiverID，群消息设置 GroupID，两者互斥。
type Message struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	SenderID   string          `gorm:"size:36;index;not null" json:"senderId" bson:"sender_id"`
	ReceiverID string          `gorm:"size:36;index" json:"receiverId,omitempty" bson:"receiver_id,omitempty"`
	GroupID    string          `gorm:"size:36;index" json:"groupId,omitempty" bson:"group_id,omitempty"`
	Text       string          `gorm:"type:text" json:"text,omitempty" bson:"text,omitempty"`
	Image      string          `gorm:"type:text" json:"image,omitempty" bson:"image,omitempty"`
	File       *FileAttachment `gorm:"serializer:json;type:text" json:"file,omitempty" bson:"file,omitempty"`
	SenderName string          `gorm:"type:varchar(191)" json:"senderName,omitempty" bson:"sender_name,omitempty"` // 仅群消息
	CreatedAt  time.Time       `gorm:"autoCreateTime;index" json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updatedAt" bson:"updated_at"`
}

// IsDirect 判断是否为私信。
func (m *Message) IsDirect() bool { return m.ReceiverID != "" && m.GroupID == "" }

// IsGroup 判断是否为群消息。
func (m *Message) IsGroup() bool { return m.GroupID != "" }

// IsEmpty 没有文本、图片和附件的消息不允许发送。
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.Text) == "" && m.Image == "" && m.File == nil
}

// FileAttachment 描述消息携带的单个文件附件。
type FileAttachment struct {
	URL          string `json:"url" bson:"url"`
	OriginalName string `json:"originalName" bson:"original_name"`
	MimeType     string `json:"mimeType" bson:"mime_type"`
	Size         int64  `json:"size" bson:"size"`
	IsDocument   bool   `json:"isDocument" bson:"is_document"`
}

// documentExtensions 中的扩展名按文档处理 (以下载附件的方式提供)。
var documentExtensions = map[string]bool{
	"pdf": true, "ppt": true, "pptx": true,
	"doc": true, "docx": true,
	"xls": true, "xlsx": true,
}

// IsDocumentName 根据文件扩展名判断附件是否为文档。
func IsDocumentName(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return documentExtensions[ext]
}
