// internal/archive/s3.go
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fileagent/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Archiver uploads summary sidecars to a bucket so they survive local
// cleanup of the watch directory.
type S3Archiver struct {
	client *s3.S3
	bucket string
}

func NewS3Archiver(cfg config.S3Config) (*S3Archiver, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(
			credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}

	return &S3Archiver{
		client: s3.New(sess),
		bucket: cfg.Bucket,
	}, nil
}

// Archive uploads the file and returns its object key.
func (a *S3Archiver) Archive(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open sidecar: %w", err)
	}
	defer f.Close()

	key := objectKey(localPath)

	_, err = a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("upload sidecar: %w", err)
	}

	return key, nil
}

func objectKey(localPath string) string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	return "summaries/" + timestamp + "/" + filepath.Base(localPath)
}
