package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type S3 struct {
	client        s3iface.S3API
	bucket        string
	region        string
	cloudFrontURL string
}

func NewS3(bucket, region, cloudFrontURL string) (*S3, error) {
	if bucket == "" || region == "" {
		return nil, fmt.Errorf("S3_BUCKET and S3_REGION are required")
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}
	return NewS3WithClient(s3.New(sess), bucket, region, cloudFrontURL), nil
}

func NewS3WithClient(client s3iface.S3API, bucket, region, cloudFrontURL string) *S3 {
	return &S3{
		client:        client,
		bucket:        bucket,
		region:        region,
		cloudFrontURL: strings.TrimSuffix(cloudFrontURL, "/"),
	}
}

func (s *S3) Mode() string {
	return "s3"
}

func (s *S3) Save(ctx context.Context, file *multipart.FileHeader, dir string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	key := objectName(dir, file.Filename)
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(file.Header.Get("Content-Type")),
		ACL:         aws.String("public-read"),
	})
	if err != nil {
		return "", err
	}
	return s.baseURL() + "/" + key, nil
}

func (s *S3) Delete(ctx context.Context, url string) error {
	key := s.keyFromURL(url)
	if key == "" {
		return fmt.Errorf("url %q does not belong to bucket %s", url, s.bucket)
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3) baseURL() string {
	if s.cloudFrontURL != "" {
		return s.cloudFrontURL
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.bucket, s.region)
}

func (s *S3) keyFromURL(url string) string {
	prefix := s.baseURL() + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
