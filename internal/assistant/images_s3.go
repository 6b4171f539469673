package assistant

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ImageStore stores analysis uploads under analysis/ in a bucket.
type S3ImageStore struct {
	client s3API
	bucket string
}

func NewS3ImageStore(client s3API, bucket string) *S3ImageStore {
	if client == nil {
		panic("assistant: s3 client cannot be nil")
	}
	if bucket == "" {
		panic("assistant: image bucket cannot be empty")
	}
	return &S3ImageStore{client: client, bucket: bucket}
}

func (s *S3ImageStore) Put(ctx context.Context, name string, img Image) (StoredImage, error) {
	key := "analysis/" + name + imageExtension(img.MIMEType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.MIMEType),
	})
	if err != nil {
		return StoredImage{}, fmt.Errorf("assistant: upload image %s: %w", name, err)
	}
	return StoredImage{Key: key, URL: fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)}, nil
}

func (s *S3ImageStore) Get(ctx context.Context, key string) (Image, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Image{}, fmt.Errorf("assistant: fetch image %s: %w", key, err)
	}
	defer out.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(out.Body, MaxImageBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("assistant: read image %s: %w", key, err)
	}
	return DecodeImage(raw)
}
