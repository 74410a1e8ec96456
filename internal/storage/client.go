// Package storage wraps the bucket that holds uploaded sources and
// rendered outputs.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// SourcePrefix holds uploaded source images, one object per job.
const SourcePrefix = "uploads/"

var ErrObjectTooLarge = errors.New("object exceeds size limit")

type Config struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	// Region skips the bucket location lookup when set.
	Region string
	UseSSL bool
	// SourceRetentionDays expires objects under SourcePrefix; zero keeps
	// them forever.
	SourceRetentionDays int
}

// ObjectInfo is the subset of object metadata the service acts on.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// UploadPolicy bounds what a presigned upload accepts.
type UploadPolicy struct {
	MaxBytes          int64
	ContentTypePrefix string
	Expiry            time.Duration
}

// Upload is a presigned form upload: POST Fields plus the image in a
// multipart "file" field to URL before ExpiresAt.
type Upload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Fields    map[string]string `json:"fields"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Object is a rendered output. Filename becomes the download name.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Filename    string
	JobID       string
}

type Client struct {
	minio         *minio.Client
	bucket        string
	retentionDays int
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{
		minio:         mc,
		bucket:        cfg.Bucket,
		retentionDays: max(0, cfg.SourceRetentionDays),
	}, nil
}

func (c *Client) Bucket() string {
	return c.bucket
}

// SourceKey is where the source image of jobID is uploaded.
func SourceKey(jobID string) string {
	return path.Join(SourcePrefix, jobID, "source")
}

// EnsureBucket creates the bucket if needed and installs the source
// expiry rule.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minio.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}
	if !exists {
		if err := c.minio.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			// Another replica may have won the race.
			if again, checkErr := c.minio.BucketExists(ctx, c.bucket); checkErr != nil || !again {
				return fmt.Errorf("create bucket %s: %w", c.bucket, err)
			}
		}
	}

	if c.retentionDays == 0 {
		return nil
	}
	if err := c.minio.SetBucketLifecycle(ctx, c.bucket, sourceLifecycle(c.retentionDays)); err != nil {
		return fmt.Errorf("set lifecycle on %s: %w", c.bucket, err)
	}
	return nil
}

func sourceLifecycle(days int) *lifecycle.Configuration {
	return &lifecycle.Configuration{
		Rules: []lifecycle.Rule{{
			ID:         "expire-sources",
			Status:     "Enabled",
			RuleFilter: lifecycle.Filter{Prefix: SourcePrefix},
			Expiration: lifecycle.Expiration{Days: lifecycle.ExpirationDays(days)},
		}},
	}
}

// PresignUpload signs a POST policy for objectKey. The store itself then
// rejects uploads that break the size or content-type bounds.
func (c *Client) PresignUpload(ctx context.Context, objectKey string, p UploadPolicy) (Upload, error) {
	expires := time.Now().UTC().Add(p.Expiry)

	policy := minio.NewPostPolicy()
	steps := []func() error{
		func() error { return policy.SetBucket(c.bucket) },
		func() error { return policy.SetKey(objectKey) },
		func() error { return policy.SetExpires(expires) },
	}
	if p.MaxBytes > 0 {
		steps = append(steps, func() error { return policy.SetContentLengthRange(1, p.MaxBytes) })
	}
	if p.ContentTypePrefix != "" {
		steps = append(steps, func() error { return policy.SetContentTypeStartsWith(p.ContentTypePrefix) })
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Upload{}, fmt.Errorf("build upload policy: %w", err)
		}
	}

	u, fields, err := c.minio.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return Upload{}, fmt.Errorf("presign upload %s: %w", objectKey, err)
	}
	return Upload{URL: u.String(), Method: http.MethodPost, Fields: fields, ExpiresAt: expires}, nil
}

// PresignedGetURL returns a download link that serves the object inline.
func (c *Client) PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", "inline")
	u, err := c.minio.PresignedGetObject(ctx, c.bucket, objectKey, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", objectKey, err)
	}
	return u.String(), nil
}

// StatObject reports whether objectKey exists and, if so, its metadata.
func (c *Client) StatObject(ctx context.Context, objectKey string) (ObjectInfo, bool, error) {
	info, err := c.minio.StatObject(ctx, c.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NoSuchObject":
			return ObjectInfo{}, false, nil
		}
		return ObjectInfo{}, false, fmt.Errorf("stat object %s: %w", objectKey, err)
	}
	return ObjectInfo{Size: info.Size, ContentType: info.ContentType}, true, nil
}

// ReadObject downloads objectKey, failing with ErrObjectTooLarge once more
// than limit bytes arrive. A limit <= 0 disables the check.
func (c *Client) ReadObject(ctx context.Context, objectKey string, limit int64) ([]byte, error) {
	obj, err := c.minio.GetObject(ctx, c.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", objectKey, err)
	}
	defer obj.Close()

	var r io.Reader = obj
	if limit > 0 {
		r = io.LimitReader(obj, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", objectKey, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", ErrObjectTooLarge, objectKey, limit)
	}
	return data, nil
}

func (c *Client) WriteObject(ctx context.Context, obj Object) error {
	_, err := c.minio.PutObject(ctx, c.bucket, obj.Key, bytes.NewReader(obj.Data), int64(len(obj.Data)), putOptions(obj))
	if err != nil {
		return fmt.Errorf("put object %s: %w", obj.Key, err)
	}
	return nil
}

func putOptions(obj Object) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{ContentType: obj.ContentType}
	if obj.Filename != "" {
		opts.ContentDisposition = mime.FormatMediaType("inline", map[string]string{"filename": obj.Filename})
	}
	if obj.JobID != "" {
		opts.UserMetadata = map[string]string{"job-id": obj.JobID}
	}
	return opts
}
