package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory s3API.
type fakeS3 struct {
	objects   map[string]string
	deleteErr error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string]string{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestS3BlobStore_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := newS3BlobStore(fake, "media", "prod/", slog.Default())
	ctx := context.Background()

	key := ThumbnailKey("ch", "vid")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("jpeg"), 4, "image/jpeg"))
	assert.Contains(t, fake.objects, "media/prod/thumbnails/ch/vid.jpg")

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "jpeg", string(data))

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrBlobNotFound)

	require.NoError(t, store.Ping(ctx))
}

func TestS3BlobStore_DeleteNotFoundIsSuccess(t *testing.T) {
	fake := newFakeS3()
	fake.deleteErr = &smithy.GenericAPIError{Code: "NotFound", Message: "gone"}
	store := newS3BlobStore(fake, "media", "", slog.Default())

	assert.NoError(t, store.Delete(context.Background(), "videos/a/b.mp4"))

	fake.deleteErr = errors.New("network down")
	assert.Error(t, store.Delete(context.Background(), "videos/a/b.mp4"))
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(&types.NoSuchKey{}))
	assert.True(t, isS3NotFound(&types.NotFound{}))
	assert.True(t, isS3NotFound(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.False(t, isS3NotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isS3NotFound(errors.New("other")))
}
