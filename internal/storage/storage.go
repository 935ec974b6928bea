// Package storage archives scan artifacts to S3. Archival is best effort:
// a run never fails because its audit copy could not be uploaded.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Archiver uploads JSON artifacts produced by a scan run.
type Archiver interface {
	ArchiveRawEvents(ctx context.Context, symbol string, payload []byte) error
	ArchiveRun(ctx context.Context, runTimestamp string, payload []byte) error
}

type s3Archiver struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
	now    func() time.Time
}

// NewS3Archiver creates an archiver writing to the given bucket. Credentials
// come from the default AWS credential chain.
func NewS3Archiver(ctx context.Context, bucket, region string, log zerolog.Logger) (Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &s3Archiver{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		log:    log.With().Str("component", "archive").Logger(),
		now:    time.Now,
	}, nil
}

// ArchiveRawEvents stores the pre-ranking event dump for one symbol under
// raw_scans/YYYY-MM-DD/SYMBOL_HHMMSS.json.
func (a *s3Archiver) ArchiveRawEvents(ctx context.Context, symbol string, payload []byte) error {
	now := a.now().UTC()
	key := fmt.Sprintf("raw_scans/%s/%s_%s.json", now.Format("2006-01-02"), symbol, now.Format("150405"))
	return a.put(ctx, key, payload)
}

// ArchiveRun stores the full briefing twice: a stable latest pointer and a
// timestamped history copy.
func (a *s3Archiver) ArchiveRun(ctx context.Context, runTimestamp string, payload []byte) error {
	if err := a.put(ctx, "scout_results/latest.json", payload); err != nil {
		return err
	}
	return a.put(ctx, fmt.Sprintf("scout_results/history/run_%s.json", runTimestamp), payload)
}

func (a *s3Archiver) put(ctx context.Context, key string, payload []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		a.log.Warn().Str("key", key).Err(err).Msg("archive upload failed")
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	a.log.Debug().Str("key", key).Int("bytes", len(payload)).Msg("archived")
	return nil
}
