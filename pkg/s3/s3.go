package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

const Scheme = "s3://"

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidRef     = errors.New("invalid s3 reference")
)

// ItfS3 stages remote photos on local disk so the worker can read them.
type ItfS3 interface {
	Stage(ctx context.Context, ref string) (string, error)
}

type Options struct {
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	StagingDir string
}

type s3Client struct {
	downloader *s3manager.Downloader
	stagingDir string
	log        *logrus.Logger
}

func New(opts Options, logger *logrus.Logger) (ItfS3, error) {
	sess, err := newSession(opts)
	if err != nil {
		return nil, err
	}

	stagingDir, err := filepath.Abs(opts.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("resolve staging dir: %w", err)
	}

	return &s3Client{
		downloader: s3manager.NewDownloader(sess),
		stagingDir: stagingDir,
		log:        logger,
	}, nil
}

// Stage downloads ref into the staging directory and returns the local path.
// An already staged object is reused.
func (s *s3Client) Stage(ctx context.Context, ref string) (string, error) {
	bucket, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}

	target := filepath.Join(s.stagingDir, bucket, filepath.FromSlash(key))
	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".staging-*")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	n, err := s.downloader.DownloadWithContext(ctx, tmp, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
		}
		return "", fmt.Errorf("download %s: %w", ref, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("stage %s: %w", ref, err)
	}

	s.log.WithFields(logrus.Fields{
		"ref":   ref,
		"path":  target,
		"bytes": n,
	}).Debug("Staged remote photo")

	return target, nil
}

// ParseRef splits s3://bucket/key.
func ParseRef(ref string) (string, string, error) {
	if !strings.HasPrefix(ref, Scheme) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	rest := strings.TrimPrefix(ref, Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
		}
	}
	return bucket, key, nil
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return true
		}
	}
	return false
}

func newSession(opts Options) (*session.Session, error) {
	cfg := &aws.Config{
		Region: aws.String(opts.Region),
	}
	if opts.AccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}

	return sess, nil
}
