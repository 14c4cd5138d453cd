package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCSStore keeps uploads as objects under "<prefix>/" in one bucket. The
// object name equals the stored path.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
	now    func() time.Time
}

func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: c, bucket: bucket, prefix: DefaultPrefix, now: time.Now}, nil
}

func (s *GCSStore) Close() error { return s.client.Close() }

func (s *GCSStore) Upload(ctx context.Context, originalName string, contentType string, r io.Reader) (string, error) {
	// the body is replayed when a name is already taken
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	now := s.now()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		objectPath := path.Join(s.prefix, objectName(now, originalName, attempt))
		obj := s.client.Bucket(s.bucket).Object(objectPath).If(gcs.Conditions{DoesNotExist: true})

		w := obj.NewWriter(ctx)
		w.ContentType = contentType

		if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
			_ = w.Close()
			return "", err
		}
		err := w.Close()
		if isPreconditionFailed(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		return objectPath, nil
	}
	return "", errors.New("no free object name for upload")
}

func (s *GCSStore) Open(ctx context.Context, storedPath string) (*Object, error) {
	if _, err := splitStoredPath(s.prefix, storedPath); err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(s.bucket).Object(storedPath).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, err
	}

	ct := rc.Attrs.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Object{Body: rc, Size: rc.Attrs.Size, ContentType: ct}, nil
}

func (s *GCSStore) Delete(ctx context.Context, storedPath string) error {
	if _, err := splitStoredPath(s.prefix, storedPath); err != nil {
		return err
	}
	err := s.client.Bucket(s.bucket).Object(storedPath).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrNotExist
	}
	return err
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
