// Package archive uploads the final snapshot of each completed tournament to
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"championship-engine/engine"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
)

// Config locates the archive bucket.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // set for MinIO, R2 and friends
	AccessKey string
	SecretKey string
	Prefix    string
}

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver is an engine.CompletionHook.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// New creates an archiver with an S3 client built from cfg.
func New(ctx context.Context, cfg Config) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	sdkCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	log.Printf("[ARCHIVE] Archiving completed tournaments to s3://%s/%s", cfg.Bucket, cfg.Prefix)
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates an archiver on an existing client.
func NewWithClient(client ObjectPutter, bucket, prefix string) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key is the object key of a tournament's archive.
func (a *Archiver) Key(tournamentID string) string {
	return path.Join(strings.TrimSuffix(a.prefix, "/"), tournamentID+".json")
}

// OnTournamentComplete writes the snapshot; a replay overwrites the same key.
func (a *Archiver) OnTournamentComplete(ctx context.Context, snap engine.Snapshot) error {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Tournament.ID, err)
	}
	key := a.Key(snap.Tournament.ID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"tournament": snap.Tournament.ID,
			"status":     string(snap.Tournament.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive (key: %s): %w", key, err)
	}
	log.WithFields(log.Fields{"tournament": snap.Tournament.ID, "key": key, "bytes": len(body)}).
		Info("[ARCHIVE] Tournament archived")
	return nil
}
