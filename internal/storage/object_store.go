package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"minniegallery/internal/config"
	"minniegallery/internal/gateway"
)

const publicReadPolicy = `{
	"Version": "2012-10-17",
	"Statement": [
		{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}
	]
}`

type ObjectStore struct {
	client  *minio.Client
	cfg     config.StorageConfig
	baseURL string
}

// StoredObject is a listing entry used by the orphan sweep.
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint, useSSL, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client:  client,
		cfg:     cfg,
		baseURL: publicBase(cfg),
	}, nil
}

// EnsureBucket creates the image bucket with an anonymous read policy so
// stored URLs can be embedded directly.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	bucket := s.cfg.Bucket
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	if err := s.client.SetBucketPolicy(ctx, bucket, fmt.Sprintf(publicReadPolicy, bucket)); err != nil {
		return fmt.Errorf("bucket policy %s: %w", bucket, err)
	}
	return nil
}

func (s *ObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *ObjectStore) PublicURL(key string) string {
	return s.baseURL + "/" + s.cfg.Bucket + "/" + key
}

func (s *ObjectStore) KeyFromURL(raw string) (string, bool) {
	return keyFromURL(raw, s.cfg.Bucket)
}

func (s *ObjectStore) Download(ctx context.Context, key string) (*gateway.Object, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("object %s: %w", key, gateway.ErrNotFound)
		}
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return &gateway.Object{
		Key:         key,
		Size:        info.Size,
		ContentType: info.ContentType,
		Body:        obj,
	}, nil
}

// Remove deletes the given keys. Keys that no longer exist are not an error.
func (s *ObjectStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var errs []error
	for res := range s.client.RemoveObjects(ctx, s.cfg.Bucket, objects, minio.RemoveObjectsOptions{}) {
		if res.Err != nil && !isNoSuchKey(res.Err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", res.ObjectName, res.Err))
		}
	}
	return errors.Join(errs...)
}

// List returns every object in the bucket.
func (s *ObjectStore) List(ctx context.Context) ([]StoredObject, error) {
	var out []StoredObject
	for info := range s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list objects: %w", info.Err)
		}
		out = append(out, StoredObject{
			Key:          info.Key,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	return out, nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.HasPrefix(endpoint, "http") {
		return endpoint, useSSL, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	return u.Host, u.Scheme == "https", nil
}

func publicBase(cfg config.StorageConfig) string {
	base := cfg.PublicEndpoint
	if base == "" {
		base = cfg.Endpoint
	}
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		return base
	}
	if cfg.UseSSL {
		return "https://" + base
	}
	return "http://" + base
}

// keyFromURL returns everything after the first "<bucket>/" path segment.
func keyFromURL(raw, bucket string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || bucket == "" {
		return "", false
	}
	marker := "/" + bucket + "/"
	idx := strings.Index(u.Path, marker)
	if idx < 0 {
		return "", false
	}
	key := u.Path[idx+len(marker):]
	if key == "" {
		return "", false
	}
	return key, true
}
