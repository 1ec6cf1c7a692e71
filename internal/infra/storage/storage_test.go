package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewObjectKeySanitizesName(t *testing.T) {
	key := NewObjectKey("files", `..\..\evil dir/My Report (final).pdf`)
	parts := strings.Split(key, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, "files", parts[0])
	assert.Len(t, parts[1], 36)
	assert.Equal(t, "My_Report_final.pdf", parts[2])

	assert.True(t, strings.HasSuffix(NewObjectKey("images", "../.."), "/file"))
}

func TestKeyFromURL(t *testing.T) {
	key, err := keyFromURL("https://cdn.example.com/", "https://cdn.example.com/files/abc/x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "files/abc/x.pdf", key)

	_, err = keyFromURL("https://cdn.example.com", "https://elsewhere.com/files/x.pdf")
	assert.ErrorIs(t, err, ErrForeignURL)

	_, err = keyFromURL("/uploads", "/uploads/../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_PutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "files/abc/hello.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/files/abc/hello.txt", url)

	data, err := os.ReadFile(filepath.Join(dir, "files", "abc", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, "files", "abc", "hello.txt"))
	assert.True(t, os.IsNotExist(err))

	// 再次删除不报错
	assert.NoError(t, store.Delete(ctx, url))
	assert.ErrorIs(t, store.Delete(ctx, "https://other/x"), ErrForeignURL)
}

func TestLocalStore_PutRejectsSizeMismatchAndBadKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "files/a/x.txt", strings.NewReader("abc"), 10, "")
	assert.Error(t, err)

	_, err = store.Put(ctx, "../escape.txt", strings.NewReader("abc"), 3, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	store, err := NewFromConfig(ctx, Config{Type: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewFromConfig(ctx, Config{Type: "s3"})
	assert.Error(t, err)

	_, err = NewFromConfig(ctx, Config{Type: "ftp"})
	assert.Error(t, err)
}

// --- S3 ---

type fakeUploader struct {
	mock.Mock
	body []byte
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.body, _ = io.ReadAll(input.Body)
	args := f.Called(aws.ToString(input.Bucket), aws.ToString(input.Key), aws.ToString(input.ContentType))
	out, _ := args.Get(0).(*manager.UploadOutput)
	return out, args.Error(1)
}

type fakeDeleter struct {
	mock.Mock
}

func (f *fakeDeleter) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := f.Called(aws.ToString(params.Bucket), aws.ToString(params.Key))
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func TestS3Store_PutAndDelete(t *testing.T) {
	up := new(fakeUploader)
	del := new(fakeDeleter)
	store := newS3Store(up, del, "chat-bucket", "/attachments/", "https://cdn.example.com/")
	ctx := context.Background()

	up.On("Upload", "chat-bucket", "attachments/images/abc/cat.png", "image/png").
		Return(&manager.UploadOutput{}, nil).Once()
	url, err := store.Put(ctx, "images/abc/cat.png", bytes.NewReader([]byte("png")), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/attachments/images/abc/cat.png", url)
	assert.Equal(t, []byte("png"), up.body)

	del.On("DeleteObject", "chat-bucket", "attachments/images/abc/cat.png").
		Return(&s3.DeleteObjectOutput{}, nil).Once()
	require.NoError(t, store.Delete(ctx, url))

	up.AssertExpectations(t)
	del.AssertExpectations(t)
}

func TestS3Store_WrapsErrors(t *testing.T) {
	up := new(fakeUploader)
	del := new(fakeDeleter)
	store := newS3Store(up, del, "b", "", "https://b.s3.eu-west-1.amazonaws.com")
	ctx := context.Background()
	boom := errors.New("boom")

	up.On("Upload", "b", "files/x.pdf", "").Return(nil, boom).Once()
	_, err := store.Put(ctx, "files/x.pdf", strings.NewReader(""), 0, "")
	assert.ErrorIs(t, err, boom)

	del.On("DeleteObject", "b", "files/x.pdf").Return(nil, boom).Once()
	assert.ErrorIs(t, store.Delete(ctx, "https://b.s3.eu-west-1.amazonaws.com/files/x.pdf"), boom)

	assert.ErrorIs(t, store.Delete(ctx, "https://elsewhere/files/x.pdf"), ErrForeignURL)
}
