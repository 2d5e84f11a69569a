package dted

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// An S3TileSource fetches tiles from s3://{bucket}/{prefix}{filename}.
type S3TileSource struct {
	downloader s3manageriface.DownloaderAPI
	bucket     string
	prefix     string
	levels     []Level
}

// NewS3TileSource returns a new S3TileSource that uses downloader, typically
// an *s3manager.Downloader.
func NewS3TileSource(downloader s3manageriface.DownloaderAPI, bucket, prefix string, options ...TileSourceOption) *S3TileSource {
	o := newTileSourceOptions(options)
	return &S3TileSource{
		downloader: downloader,
		bucket:     bucket,
		prefix:     prefix,
		levels:     o.levels,
	}
}

// FetchTile implements TileSource. Missing keys count as missing levels.
func (s *S3TileSource) FetchTile(ctx context.Context, id TileID) ([]byte, error) {
	return fetchLevels(ctx, id, s.levels, s.fetch)
}

func (s *S3TileSource) fetch(ctx context.Context, id TileID, level Level) ([]byte, error) {
	key := s.prefix + id.Filename(level)
	buffer := &aws.WriteAtBuffer{}
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if _, err := s.downloader.DownloadWithContext(ctx, buffer, input); err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("s3://%s/%s: %w", s.bucket, key, fs.ErrNotExist)
		}
		return nil, err
	}
	return buffer.Bytes(), nil
}

func isS3NotFound(err error) bool {
	var requestFailure awserr.RequestFailure
	if errors.As(err, &requestFailure) && requestFailure.StatusCode() == http.StatusNotFound {
		return true
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
