// Package archive keeps copies of uploaded ultrasound images in an
// S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the endpoint (host:port) and creates the bucket if it
// does not exist yet.
func NewMinIO(ctx context.Context, cfg Config) (*MinIO, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := c.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := c.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIO{client: c, bucket: cfg.Bucket}, nil
}

// Put stores data under prefix/<name>-<random><ext> and returns the key.
func (m *MinIO) Put(ctx context.Context, prefix, filename string, data []byte, contentType string) (string, error) {
	key := objectKey(prefix, filename, randomHex(4))
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}
	return key, nil
}

var nonSafe = regexp.MustCompile(`[^a-z0-9\-_.]+`)

func sanitizeFileName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = nonSafe.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-_.")
	if name == "" {
		name = "file"
	}
	return name
}

func objectKey(prefix, filename, suffix string) string {
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) < 2 || nonSafe.MatchString(ext[1:]) {
		ext = ".bin"
	}
	base := sanitizeFileName(strings.TrimSuffix(filename, path.Ext(filename)))
	key := fmt.Sprintf("%s-%s%s", base, suffix, ext)
	if p := sanitizeFileName(prefix); prefix != "" {
		key = p + "/" + key
	}
	return key
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
