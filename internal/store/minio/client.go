package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/maraichr/docstream/internal/config"
)

// Client is the blob store holding raw uploaded document bytes. Workers
// read objects by the storage key recorded on the document.
type Client struct {
	mc     *minio.Client
	bucket string
}

func NewClient(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{mc: mc, bucket: cfg.Bucket}, nil
}

func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func (c *Client) Upload(ctx context.Context, storageKey string, reader io.Reader, size int64) error {
	_, err := c.mc.PutObject(ctx, c.bucket, storageKey, reader, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("upload object %s: %w", storageKey, err)
	}
	return nil
}

func (c *Client) Download(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, storageKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download object %s: %w", storageKey, err)
	}
	return obj, nil
}

// ReadAll downloads an object and returns its full contents.
func (c *Client) ReadAll(ctx context.Context, storageKey string) ([]byte, error) {
	rc, err := c.Download(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", storageKey, err)
	}
	return data, nil
}

func (c *Client) Delete(ctx context.Context, storageKey string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, storageKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", storageKey, err)
	}
	return nil
}

func (c *Client) Bucket() string {
	return c.bucket
}
