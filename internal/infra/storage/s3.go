package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// s3Uploader 是 manager.Uploader 中用到的部分
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// s3Deleter 是 s3.Client 中用到的部分
type s3Deleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store 把附件上传到 S3 (或兼容 S3 的对象存储)
type S3Store struct {
	uploader s3Uploader
	deleter  s3Deleter
	bucket   string
	prefix   string
	baseURL  string
}

// NewS3Store 使用 AWS 默认凭证链创建 S3Store；配置了静态密钥时优先使用静态密钥。
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			// MinIO 等兼容服务需要 path-style 访问
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.S3PublicURL
	if baseURL == "" {
		if cfg.S3Endpoint != "" {
			baseURL = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, awsCfg.Region)
		}
	}
	return newS3Store(manager.NewUploader(client), client, cfg.S3Bucket, cfg.S3Prefix, baseURL), nil
}

func newS3Store(up s3Uploader, del s3Deleter, bucket, prefix, baseURL string) *S3Store {
	return &S3Store{
		uploader: up,
		deleter:  del,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put 上传对象。manager.Uploader 会对大文件自动使用分片上传。
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	objectKey := s.objectKey(key)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("s3: upload %s: %w", objectKey, err)
	}
	logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": objectKey, "size": size}).Debug("Attachment uploaded to S3")
	return s.baseURL + "/" + objectKey, nil
}

// Delete 删除对象。S3 对不存在的键同样返回成功。
func (s *S3Store) Delete(ctx context.Context, url string) error {
	objectKey, err := keyFromURL(s.baseURL, url)
	if err != nil {
		return err
	}
	_, err = s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", objectKey, err)
	}
	return nil
}

// Compile-time check
var _ Store = (*S3Store)(nil)
