package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"diettracker/utils"
)

// ImageStore persists uploaded meal photos and returns their public URL.
type ImageStore interface {
	Put(ctx context.Context, userID string, data []byte, mimeType string) (string, error)
	Enabled() bool
}

// UploadOutcome is the result of the optional upload side effect. An empty
// URL with a nil Err means storage is not configured.
type UploadOutcome struct {
	URL string
	Err error
}

// Upload runs store.Put and folds the result into an outcome. It never
// fails the caller.
func Upload(ctx context.Context, store ImageStore, userID string, data []byte, mimeType string) UploadOutcome {
	if store == nil || !store.Enabled() {
		return UploadOutcome{}
	}
	url, err := store.Put(ctx, userID, data, mimeType)
	return UploadOutcome{URL: url, Err: err}
}

type S3ImageStore struct {
	client        utils.S3PutAPI
	bucket        string
	region        string
	cloudfrontURL string
}

func NewS3ImageStore(client utils.S3PutAPI, bucket, region, cloudfrontURL string) *S3ImageStore {
	return &S3ImageStore{client: client, bucket: bucket, region: region, cloudfrontURL: cloudfrontURL}
}

func (s *S3ImageStore) Enabled() bool { return s.client != nil && s.bucket != "" }

// Put stores data under food-images/<user>/<uuid><ext>.
func (s *S3ImageStore) Put(ctx context.Context, userID string, data []byte, mimeType string) (string, error) {
	key := fmt.Sprintf("food-images/%s/%s%s", userID, uuid.NewString(), utils.ImageExt(mimeType))
	if err := utils.PutPublicObject(ctx, s.client, s.bucket, key, mimeType, data); err != nil {
		return "", err
	}
	return utils.PublicObjectURL(s.cloudfrontURL, s.bucket, s.region, key), nil
}

// NoopImageStore is used when no bucket is configured.
type NoopImageStore struct{}

func (NoopImageStore) Enabled() bool { return false }

func (NoopImageStore) Put(context.Context, string, []byte, string) (string, error) { return "", nil }
