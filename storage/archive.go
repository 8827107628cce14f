package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"SampleDeck/logger"

	"github.com/minio/minio-go/v7"
)

const samplePrefix = "samples/"

// ObjectInfo describes one archived sample.
type ObjectInfo struct {
	UUID         string
	Size         int64
	LastModified time.Time
}

// BucketStats summarises the archive.
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// Archive stores raw sample files in a MinIO bucket, keyed by asset uuid.
type Archive struct {
	client *minio.Client
	bucket string
}

func NewArchive(client *minio.Client, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

func objectName(uuid string) string {
	return samplePrefix + uuid
}

// Get returns the archived bytes for uuid, or nil when the object does not exist.
func (a *Archive) Get(ctx context.Context, uuid string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, objectName(uuid), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", uuid, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", uuid, err)
	}
	logger.Debug("Sample read from archive",
		logger.String("uuid", uuid),
		logger.Int("size", len(data)))
	return data, nil
}

// Put uploads data for uuid.
func (a *Archive) Put(ctx context.Context, uuid string, data []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, objectName(uuid), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("put %s: %w", uuid, err)
	}
	return nil
}

// Delete removes the archived object for uuid.
func (a *Archive) Delete(ctx context.Context, uuid string) error {
	return a.client.RemoveObject(ctx, a.bucket, objectName(uuid), minio.RemoveObjectOptions{})
}

// List returns the archived samples, newest first, with bucket totals.
func (a *Archive) List(ctx context.Context) ([]ObjectInfo, *BucketStats, error) {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return nil, nil, fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		return nil, nil, fmt.Errorf("bucket %s does not exist", a.bucket)
	}

	stats := &BucketStats{}
	var objects []ObjectInfo
	for object := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    samplePrefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			logger.Warn("Failed to list archive object", logger.ErrorField(object.Err))
			continue
		}
		objects = append(objects, ObjectInfo{
			UUID:         strings.TrimPrefix(object.Key, samplePrefix),
			Size:         object.Size,
			LastModified: object.LastModified,
		})
		stats.TotalObjects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, stats, nil
}

// Prune deletes archived samples last modified before cutoff.
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	objects, _, err := a.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := a.Delete(ctx, obj.UUID); err != nil {
			logger.Warn("Failed to prune archived sample",
				logger.String("uuid", obj.UUID),
				logger.ErrorField(err))
			continue
		}
		removed++
	}
	logger.Info("Archive pruned",
		logger.String("object", path.Join(a.bucket, samplePrefix)),
		logger.Int("removed", removed))
	return removed, nil
}

// FormatSize renders a byte count with a binary unit.
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
	return fmt.Sprintf("%.2f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
