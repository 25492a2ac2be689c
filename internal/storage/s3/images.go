// Package s3 stores flyer images in an S3 bucket.
package s3

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"volume/internal/config"
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type ImageStore struct {
	bucket   string
	prefix   string
	baseURL  string
	uploader *s3manager.Uploader
	svc      *s3.S3
}

func NewImageStore(cfg config.S3Config) (*ImageStore, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return newImageStore(sess, cfg), nil
}

func newImageStore(sess *session.Session, cfg config.S3Config) *ImageStore {
	return &ImageStore{
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		baseURL:  publicBaseURL(cfg),
		uploader: s3manager.NewUploader(sess),
		svc:      s3.New(sess),
	}
}

func publicBaseURL(cfg config.S3Config) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// Upload stores body under the configured prefix and returns its public
// URL. The content type is sniffed from the first bytes.
func (s *ImageStore) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	br := bufio.NewReaderSize(body, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", fmt.Errorf("read image: %w", err)
	}
	contentType := http.DetectContentType(head)

	key := s.keyFor(name, contentType)
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		ACL:         aws.String("public-read"),
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        br,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// Remove deletes the object behind a URL previously returned by Upload.
func (s *ImageStore) Remove(ctx context.Context, url string) error {
	key, ok := s.keyFromURL(url)
	if !ok {
		return fmt.Errorf("url %q is not in bucket %s", url, s.bucket)
	}
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *ImageStore) keyFor(name, contentType string) string {
	return path.Join(s.prefix, name+extensions[contentType])
}

func (s *ImageStore) keyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
