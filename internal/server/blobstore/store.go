// Package blobstore stores normalized profile photos in S3-compatible object
// storage and issues short-lived signed GET URLs for them.
package blobstore

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/xtouch/internal/common"
)

// keyBytes is the amount of randomness behind a storage key.
const keyBytes = 32

// Store is the narrow blob storage contract used by the profile service.
// Implementations report failures as *common.StorageError.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Options describe how to reach the object storage backend.
type Options struct {
	Endpoint  string // e.g. "http://127.0.0.1:9000/"
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewKey returns a fresh opaque storage key: 32 random bytes, hex encoded.
// Uniqueness is probabilistic and never checked against the store.
func NewKey() (string, error) {
	key, err := common.MakeRandHexString(keyBytes)
	if err != nil {
		return "", common.NewStorageError("blob.key", err)
	}
	return key, nil
}

// hostPort strips the scheme and path from an endpoint URL, which is the
// form minio.New expects. A bare "host:port" is returned unchanged.
func hostPort(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return u.Host
	}
	return strings.TrimSuffix(endpoint, "/")
}
