// Package mirror implements a secondary S3 remote mirror: pushing the
// whole local target tree to an S3 bucket so a CDN edge or
// object-storage-backed repository can serve it alongside the local
// target tree.
package mirror

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"rrdpd/internal/rrdp"
)

// S3Mirror uploads a target directory tree to an S3 bucket/prefix,
// bodies first and notification.xml last, matching the ordering
// discipline of the local Publisher so partial pushes never leave a
// notification pointing at objects that aren't there yet.
type S3Mirror struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// Config configures the S3 mirror. AccessKey/SecretKey are optional;
// when empty the default AWS credential chain is used (environment,
// shared config, instance role).
type Config struct {
	Bucket, Region, Prefix string
	AccessKey, SecretKey   string
}

// New builds an S3Mirror from cfg: a static credentials provider when
// explicit keys are given, otherwise the SDK's default chain.
func New(ctx context.Context, cfg Config) (*S3Mirror, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading AWS config: %v", rrdp.ErrConfig, err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Mirror{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
	}, nil
}

var _ rrdp.Mirror = (*S3Mirror)(nil)

// Push uploads every regular file under root to the mirror, deferring
// notification.xml to last. root is the RRDP target directory as laid
// out by the local Publisher: notification.xml plus one <session>/<serial>/
// subtree per retained session.
func (m *S3Mirror) Push(ctx context.Context, root string) error {
	var notificationPath string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "notification.xml" {
			notificationPath = path
			return nil
		}
		return m.upload(ctx, path, rel)
	})
	if err != nil {
		return fmt.Errorf("%w: walking target directory: %v", rrdp.ErrIO, err)
	}

	if notificationPath != "" {
		if err := m.upload(ctx, notificationPath, "notification.xml"); err != nil {
			return err
		}
	}
	return nil
}

// objectKey joins a bucket prefix and a relative key, avoiding a
// leading slash when prefix is empty.
func objectKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func (m *S3Mirror) upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", rrdp.ErrIO, localPath, err)
	}
	defer f.Close()

	fullKey := objectKey(m.prefix, key)

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/xml"
	}

	_, err = m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(fullKey),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("%w: uploading %s to s3://%s/%s: %v", rrdp.ErrIO, localPath, m.bucket, fullKey, err)
	}
	return nil
}
