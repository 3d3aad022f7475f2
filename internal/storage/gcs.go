package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps attachments in a bucket. Folders are key prefixes, so moving
// an object into a folder is a server-side copy followed by a delete.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: c, bucket: bucket}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) CreateObject(ctx context.Context, name, mimeType string, r io.Reader) (string, error) {
	obj := s.client.Bucket(s.bucket).Object(name)

	w := obj.NewWriter(ctx)
	w.ContentType = mimeType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return name, nil
}

func (s *GCSStore) SetParent(ctx context.Context, objectID, folderID string) (string, error) {
	dstKey := folderKey(folderID, objectID)
	if dstKey == objectID {
		return objectID, nil
	}

	bkt := s.client.Bucket(s.bucket)
	src := bkt.Object(objectID)
	dst := bkt.Object(dstKey)
	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return "", err
	}
	// Only the source is left for the caller to clean up on failure.
	if err := src.Delete(ctx); err != nil {
		if derr := dst.Delete(ctx); derr != nil {
			return "", errors.Join(err, fmt.Errorf("delete copy %s: %w", dstKey, derr))
		}
		return "", err
	}
	return dstKey, nil
}

func (s *GCSStore) GrantPublicRead(ctx context.Context, objectID string) error {
	return s.client.Bucket(s.bucket).Object(objectID).ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader)
}

func (s *GCSStore) PublicURL(objectID string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectID)
}

func (s *GCSStore) DeleteObject(ctx context.Context, objectID string) error {
	return s.client.Bucket(s.bucket).Object(objectID).Delete(ctx)
}

// folderKey places the base name of key under folder.
func folderKey(folder, key string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return key
	}
	return path.Join(folder, path.Base(key))
}
