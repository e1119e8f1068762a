package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3ImageStorePut(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3ImageStore(fake, "meals", "us-east-1", "https://cdn.example.com/")
	out := Upload(context.Background(), store, "u1", []byte("png-bytes"), "image/png")
	if out.Err != nil {
		t.Fatalf("upload: %v", out.Err)
	}
	key := *fake.in.Key
	if !strings.HasPrefix(key, "food-images/u1/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q", key)
	}
	if out.URL != "https://cdn.example.com/"+key {
		t.Fatalf("url = %q", out.URL)
	}
	if *fake.in.Bucket != "meals" || *fake.in.ContentType != "image/png" || string(fake.body) != "png-bytes" {
		t.Fatalf("input = %+v", fake.in)
	}
}

func TestUploadOutcomes(t *testing.T) {
	if out := Upload(context.Background(), NoopImageStore{}, "u1", []byte("x"), "image/jpeg"); out.URL != "" || out.Err != nil {
		t.Fatalf("noop = %+v", out)
	}
	if out := Upload(context.Background(), nil, "u1", []byte("x"), "image/jpeg"); out.URL != "" || out.Err != nil {
		t.Fatalf("nil store = %+v", out)
	}
	failing := NewS3ImageStore(&fakeS3{err: errors.New("denied")}, "meals", "us-east-1", "")
	if out := Upload(context.Background(), failing, "u1", []byte("x"), "image/jpeg"); out.Err == nil || out.URL != "" {
		t.Fatalf("failing = %+v", out)
	}
}
