package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

var ErrObjectNotFound = errors.New("object not found")

// Object describes an object stored under a project prefix.
type Object struct {
	// Name is the object name relative to the project prefix.
	Name string
	// Key is the full object key inside the bucket.
	Key  string
	Size int64
}

type MinioOpts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	region          string
	inputBucket     string
	outputBucket    string
	accessKey       string
	secretAccessKey string
	publicBaseURL   string
	useSSL          bool
}

func newConfig(opts ...MinioOpts) *minioConfig {
	cfg := &minioConfig{
		useSSL:       false,
		inputBucket:  "uploads",
		outputBucket: "orthomosaics",
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// MinioStore reads project images from the input bucket and publishes
// artifacts to the output bucket.
type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

func NewMinioStore(opts ...MinioOpts) (*MinioStore, error) {
	cfg := newConfig(opts...)

	minioClient, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, err
	}

	if cfg.publicBaseURL == "" {
		scheme := "http"
		if cfg.useSSL {
			scheme = "https"
		}
		cfg.publicBaseURL = fmt.Sprintf("%s://%s", scheme, cfg.endpoint)
	}

	return &MinioStore{cfg: cfg, client: minioClient}, nil
}

// List returns the objects stored directly under the projectKey prefix of the input bucket.
func (s *MinioStore) List(ctx context.Context, projectKey string) ([]Object, error) {
	prefix := strings.TrimSuffix(projectKey, "/") + "/"

	objects := []Object{}
	for info := range s.client.ListObjects(ctx, s.cfg.inputBucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, fmt.Errorf("listing %s/%s: %w", s.cfg.inputBucket, prefix, info.Err)
		}
		// common prefixes ("sub folders") come back as keys ending in '/'
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		objects = append(objects, Object{
			Name: strings.TrimPrefix(info.Key, prefix),
			Key:  info.Key,
			Size: info.Size,
		})
	}

	return objects, nil
}

// Download copies the object key of the input bucket into dst.
func (s *MinioStore) Download(ctx context.Context, key string, dst io.Writer) error {
	object, err := s.client.GetObject(ctx, s.cfg.inputBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return err
	}
	defer object.Close()

	objInfo, err := object.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return err
	}

	written, err := io.Copy(dst, object)
	if err != nil {
		return err
	}

	if written != objInfo.Size {
		return fmt.Errorf("failed to download the entire object %s. expected bytes %d received %d", key, objInfo.Size, written)
	}

	return nil
}

// Upload stores r under key in the output bucket and returns the public URL of the object.
// Keys are flat paths, there is no folder to create beforehand.
func (s *MinioStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	info, err := s.client.PutObject(ctx, s.cfg.outputBucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("uploading %s/%s: %w", s.cfg.outputBucket, key, err)
	}

	zap.S().Named("storage").Debugw("object uploaded", "bucket", info.Bucket, "key", info.Key, "size", info.Size, "etag", info.ETag)

	return s.PublicURL(key)
}

// PublicURL returns the public retrieval URL of key in the output bucket.
func (s *MinioStore) PublicURL(key string) (string, error) {
	base, err := url.Parse(s.cfg.publicBaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing public base url: %w", err)
	}
	base.Path = path.Join("/", base.Path, s.cfg.outputBucket, key)
	return base.String(), nil
}

func WithEndpoint(endpoint string) MinioOpts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

func WithRegion(region string) MinioOpts {
	return func(c *minioConfig) {
		c.region = region
	}
}

func WithInputBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.inputBucket = bucket
	}
}

func WithOutputBucket(bucket string) MinioOpts {
	return func(c *minioConfig) {
		c.outputBucket = bucket
	}
}

func WithAccessKey(accessKey string) MinioOpts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) MinioOpts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithPublicBaseURL(u string) MinioOpts {
	return func(c *minioConfig) {
		c.publicBaseURL = u
	}
}

func WithSSL(useSSL bool) MinioOpts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}
