package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ESMP/config"
	"ESMP/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketStats summarises a bucket listing.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// MinioStore reads audio objects from one bucket.
type MinioStore struct {
	client   *minio.Client
	endpoint string
	bucket   string
	region   string
}

// NewMinioStore creates a store from the MinIO settings in cfg. No network
// call is made.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is not set")
	}
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinioStore{
		client:   client,
		endpoint: strings.ToLower(cfg.MinioEndpoint),
		bucket:   cfg.MinioBucket,
		region:   cfg.MinioRegion,
	}, nil
}

// Bucket is the bucket name.
func (s *MinioStore) Bucket() string { return s.bucket }

// Check verifies the bucket exists.
func (s *MinioStore) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// objectKey extracts the key from a path-style URL on this store's
// endpoint, e.g. https://minio.example.com/esmp/audio/a.mp3.
func (s *MinioStore) objectKey(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(u.Host, s.endpoint) {
		return "", false
	}
	key, ok := strings.CutPrefix(u.Path, "/"+s.bucket+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

// Handles reports whether rawURL points into this store's bucket.
func (s *MinioStore) Handles(rawURL string) bool {
	_, ok := s.objectKey(rawURL)
	return ok
}

// Open streams the object behind a bucket URL.
func (s *MinioStore) Open(ctx context.Context, rawURL string) (*Object, error) {
	key, ok := s.objectKey(rawURL)
	if !ok {
		return nil, fmt.Errorf("storage: %q is not in bucket %s", rawURL, s.bucket)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	logger.Debug("opened bucket object",
		logger.String("key", key),
		logger.Int64("size", info.Size))
	return &Object{Body: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

// List returns the objects under prefix with aggregate stats.
func (s *MinioStore) List(ctx context.Context, prefix string, recursive bool) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		stats.add(object.Size, object.LastModified)
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, stats, nil
}

func (b *BucketStats) add(size int64, modified time.Time) {
	b.TotalObjects++
	b.TotalSize += size
	if modified.After(b.LastModified) {
		b.LastModified = modified
	}
}

// UsageByType sums object sizes by coarse content type.
func UsageByType(objects []ObjectInfo) map[string]int64 {
	usage := make(map[string]int64)
	for _, obj := range objects {
		contentType := obj.ContentType
		if contentType == "" {
			contentType = InferContentType(obj.Key)
		}
		usage[contentType] += obj.Size
	}
	return usage
}

// InferContentType guesses a coarse type from the file extension.
func InferContentType(filename string) string {
	switch strings.ToLower(fileExtension(filename)) {
	case ".mp3", ".wav", ".flac", ".m4a":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	case ".pdf", ".doc", ".docx", ".txt":
		return "document"
	default:
		return "other"
	}
}

func fileExtension(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 && !strings.ContainsRune(filename[i:], '/') {
		return filename[i:]
	}
	return ""
}

// FormatSize renders a byte count in binary units.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
