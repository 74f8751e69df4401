// Package media resolves version-image object keys to presigned URLs the
// clients can load directly from object storage.
package media

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"atelier/api/internal/store"
)

type Links struct {
	client  *minio.Client
	bucket  string
	linkTTL time.Duration
}

// New connects to the object-storage endpoint and ensures the bucket
// exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, linkTTL time.Duration) (*Links, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	if linkTTL <= 0 {
		linkTTL = 15 * time.Minute
	}
	return &Links{client: client, bucket: bucket, linkTTL: linkTTL}, nil
}

// Resolve maps image links that are object keys to presigned URLs.
// Absolute URLs (externally hosted or already-signed) pass through
// untouched, and a signing failure keeps the raw link rather than dropping
// the image.
func (l *Links) Resolve(ctx context.Context, images []store.VersionImage) []store.VersionImage {
	if len(images) == 0 {
		return images
	}
	resolved := make([]store.VersionImage, len(images))
	for i, img := range images {
		resolved[i] = img
		if img.Link == "" || strings.Contains(img.Link, "://") {
			continue
		}
		signed, err := l.client.PresignedGetObject(ctx, l.bucket, img.Link, l.linkTTL, url.Values{})
		if err != nil {
			log.Printf("media: presign %s: %v", img.Link, err)
			continue
		}
		resolved[i].Link = signed.String()
	}
	return resolved
}
