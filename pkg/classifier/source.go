package classifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactSource provides read access to model artifacts by file name.
type ArtifactSource interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	String() string
}

// DirSource reads artifacts from a local directory.
type DirSource struct {
	Dir string
}

// NewDirSource returns a source rooted at dir (defaults to the working directory).
func NewDirSource(dir string) DirSource {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	return DirSource{Dir: dir}
}

// Open opens the named artifact.
func (s DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.Dir, name))
}

func (s DirSource) String() string {
	return "dir:" + s.Dir
}

// MinioSource reads artifacts from a MinIO/S3 compatible bucket.
type MinioSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// MinioConfig holds connection settings for MinioSource.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// NewMinioSource connects to MinIO and checks the bucket exists.
func NewMinioSource(cfg MinioConfig) (*MinioSource, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("model bucket %q does not exist", cfg.Bucket)
	}
	return &MinioSource{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Open fetches the named artifact object.
func (s *MinioSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.key(name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before decoding starts.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat object %s: %w", key, err)
	}
	return obj, nil
}

func (s *MinioSource) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *MinioSource) String() string {
	return "minio:" + path.Join(s.bucket, s.prefix)
}
