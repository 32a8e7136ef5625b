package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/homewatch/internal/config"
)

// MediaStore holds event media in MinIO: one snapshot object per
// trigger plus, for clip-capable cameras, a clip prefix containing the
// native video and pre-extracted frames.
type MediaStore struct {
	client *minio.Client
	bucket string
}

func NewMediaStore(cfg config.MinIOConfig) (*MediaStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MediaStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MediaStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// SnapshotKey builds the object key for a trigger snapshot.
func SnapshotKey(cameraID uuid.UUID, at time.Time, triggerID uuid.UUID) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.jpg",
		cameraID, at.UTC().Format("2006/01/02"), triggerID)
}

// ClipPrefix builds the object prefix for a trigger's clip media. The
// native video lives at <prefix>/clip.mp4 and extracted frames under
// <prefix>/frames/.
func ClipPrefix(cameraID uuid.UUID, at time.Time, triggerID uuid.UUID) string {
	return fmt.Sprintf("clips/%s/%s/%s",
		cameraID, at.UTC().Format("2006/01/02"), triggerID)
}

// PutSnapshot stores a JPEG snapshot and returns its key.
func (s *MediaStore) PutSnapshot(ctx context.Context, cameraID uuid.UUID, at time.Time, triggerID uuid.UUID, jpeg []byte) (string, error) {
	key := SnapshotKey(cameraID, at, triggerID)
	if err := s.PutObject(ctx, key, jpeg, "image/jpeg"); err != nil {
		return "", err
	}
	return key, nil
}

// PutClip stores the native clip video under the trigger's clip prefix.
func (s *MediaStore) PutClip(ctx context.Context, prefix string, video []byte) error {
	return s.PutObject(ctx, prefix+"/clip.mp4", video, "video/mp4")
}

// PutClipFrame stores one extracted frame, keyed so lexical order is
// chronological order.
func (s *MediaStore) PutClipFrame(ctx context.Context, prefix string, index int, jpeg []byte) error {
	return s.PutObject(ctx, fmt.Sprintf("%s/frames/%05d.jpg", prefix, index), jpeg, "image/jpeg")
}

// PutObject uploads data under the given key.
func (s *MediaStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// GetObject retrieves an object by key.
func (s *MediaStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// ListObjects returns all object keys under the given prefix, in the
// order MinIO returns them (lexical, so clip frames come back in
// chronological order).
func (s *MediaStore) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// DeletePrefix removes every object under a prefix in a single batch.
// Used when an event and its media are purged.
func (s *MediaStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.ListObjects(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)
	for result := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return fmt.Errorf("delete object %s: %w", result.ObjectName, result.Err)
		}
	}
	return nil
}

// DeleteObject removes a single object.
func (s *MediaStore) DeleteObject(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Ping checks MinIO connectivity.
func (s *MediaStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
