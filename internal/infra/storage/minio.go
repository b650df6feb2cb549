package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options for the MinIO / S3 compatible plot bucket.
type Options struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string // optional, e.g. a CDN in front of the bucket
}

type Store struct {
	client     *minio.Client
	bucketName string
	baseURL    string
}

// New buat koneksi MinIO dan pastikan bucket ada
func New(ctx context.Context, opts Options) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, err
		}
	}

	base := strings.TrimRight(opts.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("%s/%s", strings.TrimRight(cli.EndpointURL().String(), "/"), opts.Bucket)
	}
	return &Store{client: cli, bucketName: opts.Bucket, baseURL: base}, nil
}

// PutPlot uploads one rendered chart and returns its URL.
func (s *Store) PutPlot(ctx context.Context, sessionID, kind string, data []byte, contentType string) (string, error) {
	key := PlotKey(sessionID, kind, contentType)
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// Check satisfies the health checker contract.
func (s *Store) Check(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

// PlotKey is plots/<session>/<kind>-<uuid>.<ext>.
func PlotKey(sessionID, kind, contentType string) string {
	ext := "bin"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/jpeg":
		ext = "jpg"
	case "image/svg+xml":
		ext = "svg"
	case "image/webp":
		ext = "webp"
	}
	return path.Join("plots", sessionID, fmt.Sprintf("%s-%s.%s", kind, uuid.NewString(), ext))
}
