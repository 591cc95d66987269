package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ImageUploader issues presigned PUT URLs for menu item images.
type ImageUploader interface {
	PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error)
}

type PresignedUpload struct {
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	PublicURL string            `json:"publicUrl"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

type S3ImageUploader struct {
	presigner *s3.PresignClient
	bucket    string
	publicURL string
	expiry    time.Duration
}

// NewS3ImageUploader builds an uploader for bucket. publicBaseURL is the prefix
// clients use to read objects back (CDN or bucket website URL).
func NewS3ImageUploader(cfg sdkaws.Config, bucket, publicBaseURL string, expiry time.Duration) *S3ImageUploader {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
	}
	return &S3ImageUploader{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		publicURL: publicBaseURL,
		expiry:    expiry,
	}
}

func (u *S3ImageUploader) PresignUpload(ctx context.Context, key, contentType string) (*PresignedUpload, error) {
	input := &s3.PutObjectInput{
		Bucket:      sdkaws.String(u.bucket),
		Key:         sdkaws.String(key),
		ContentType: sdkaws.String(contentType),
	}
	presigned, err := u.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign put object: %w", err)
	}

	headers := make(map[string]string, len(presigned.SignedHeader))
	for k, v := range presigned.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return &PresignedUpload{
		URL:       presigned.URL,
		Headers:   headers,
		PublicURL: u.publicURL + "/" + key,
		ExpiresAt: time.Now().Add(u.expiry).UTC(),
	}, nil
}
