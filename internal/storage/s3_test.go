package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    []byte
	deleted []string
	pages   []*s3.ListObjectsV2Output
	calls   int
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag-1"`)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func TestS3UploaderUpload(t *testing.T) {
	fake := &fakeS3{}
	u := &S3Uploader{cfg: S3Config{Bucket: "fotos", Region: "auto", PublicDomain: "https://cdn.exemplo.gov.br/"}, client: fake}

	res, err := u.Upload(context.Background(), UploadInput{Key: "/demandas/a b.jpg", Body: []byte("img"), CacheControl: "public, max-age=31536000"})
	require.NoError(t, err)

	assert.Equal(t, "demandas/a b.jpg", res.Key)
	assert.Equal(t, "https://cdn.exemplo.gov.br/demandas/a%20b.jpg", res.URL)
	assert.Equal(t, "etag-1", res.ETag)
	assert.Equal(t, "fotos", aws.ToString(fake.put.Bucket))
	assert.Equal(t, "application/octet-stream", aws.ToString(fake.put.ContentType))
	assert.Equal(t, "public, max-age=31536000", aws.ToString(fake.put.CacheControl))
	assert.Equal(t, []byte("img"), fake.body)
}

func TestS3UploaderErrors(t *testing.T) {
	fake := &fakeS3{err: errors.New("AccessDenied")}
	u := &S3Uploader{cfg: S3Config{Bucket: "fotos", Region: "auto"}, client: fake}

	_, err := u.Upload(context.Background(), UploadInput{Key: "a.jpg", Body: []byte("x")})
	assert.ErrorContains(t, err, "AccessDenied")
	_, err = u.Upload(context.Background(), UploadInput{Key: "", Body: []byte("x")})
	assert.Error(t, err)
	assert.Error(t, u.Delete(context.Background(), "a.jpg"))
}

func TestS3UploaderDeleteAndList(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("demandas/1.jpg"), Size: aws.Int64(10), LastModified: aws.Time(now)}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("p2"),
		},
		{
			Contents: []types.Object{{Key: aws.String("demandas/2.png"), Size: aws.Int64(20), LastModified: aws.Time(now)}},
		},
	}}
	u := &S3Uploader{cfg: S3Config{Bucket: "fotos", Region: "auto"}, client: fake}

	require.NoError(t, u.Delete(context.Background(), "demandas/1.jpg"))
	assert.Equal(t, []string{"demandas/1.jpg"}, fake.deleted)

	objs, err := u.List(context.Background(), "demandas/")
	require.NoError(t, err)
	assert.Equal(t, []Object{
		{Key: "demandas/1.jpg", Size: 10, ModTime: now},
		{Key: "demandas/2.png", Size: 20, ModTime: now},
	}, objs)
}

func TestS3ConfigValidate(t *testing.T) {
	valid := S3Config{Region: "auto", Bucket: "b", AccessKey: "k", SecretKey: "s"}
	assert.NoError(t, valid.validate())

	bad := valid
	bad.Endpoint = "r2.cloudflarestorage.com"
	assert.Error(t, bad.validate())

	bad = valid
	bad.Bucket = ""
	assert.Error(t, bad.validate())
}

func TestS3PublicURLFallbacks(t *testing.T) {
	u := &S3Uploader{cfg: S3Config{Bucket: "fotos", Region: "sa-east-1"}}
	assert.Equal(t, "https://fotos.s3.sa-east-1.amazonaws.com/k.jpg", u.publicURL("k.jpg"))

	u.cfg.Endpoint = "https://conta.r2.cloudflarestorage.com/"
	assert.Equal(t, "https://conta.r2.cloudflarestorage.com/fotos/k.jpg", u.publicURL("k.jpg"))
}
