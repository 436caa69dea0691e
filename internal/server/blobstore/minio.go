package blobstore

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// minioAPI is the part of *minio.Client used by MinioStore.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

var newMinioClient = func(endpoint string, opts *minio.Options) (minioAPI, error) {
	return minio.New(endpoint, opts)
}

// MinioStore is a Store backed by minio-go.
type MinioStore struct {
	client minioAPI
	bucket string
}

// NewMinioStore connects to the endpoint and creates the bucket when it does
// not exist yet.
func NewMinioStore(ctx context.Context, opts Options) (*MinioStore, error) {
	client, err := newMinioClient(hostPort(opts.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, common.NewStorageError("blob.config", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, common.NewStorageError("blob.bucket", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, common.NewStorageError("blob.bucket", err)
		}
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return common.NewStorageError("blob.put", err)
	}
	return nil
}

func (s *MinioStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", common.NewStorageError("blob.sign", err)
	}
	return u.String(), nil
}
