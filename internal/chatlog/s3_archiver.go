package chatlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ManifestEntry is one line of the monthly export manifest.
type ManifestEntry struct {
	Name       string `json:"name"`
	S3Key      string `json:"s3_key"`
	Bytes      int    `json:"bytes"`
	ArchivedAt string `json:"archived_at"`
}

// S3Archiver stores CSV exports in S3. With an empty bucket every call is a no-op.
type S3Archiver struct {
	bucket   string
	s3Client S3API
	now      func() time.Time
	logger   *logging.Logger
}

// NewS3Archiver creates an archiver for bucket.
func NewS3Archiver(s3Client S3API, bucket string, logger *logging.Logger) *S3Archiver {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Archiver{bucket: bucket, s3Client: s3Client, now: time.Now, logger: logger}
}

// Enabled returns true if archival is configured.
func (a *S3Archiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// Upload writes an export under a dated key and records it in the manifest.
// It returns the object key.
func (a *S3Archiver) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	now := a.now().UTC()
	key := fmt.Sprintf("exports/v1/%d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), name)

	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("chatlog: s3 put %s: %w", key, err)
	}
	a.logger.Info("archived export to S3", "s3_key", key, "bytes", len(data))

	entry := ManifestEntry{Name: name, S3Key: key, Bytes: len(data), ArchivedAt: now.Format(time.RFC3339)}
	if err := a.appendManifest(ctx, now, entry); err != nil {
		a.logger.Warn("failed to append export manifest", "error", err, "s3_key", key)
	}
	return key, nil
}

// appendManifest does a read-modify-write since S3 has no append.
func (a *S3Archiver) appendManifest(ctx context.Context, now time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("chatlog: marshal manifest entry: %w", err)
	}
	manifestKey := fmt.Sprintf("exports/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	getResp, err := a.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(manifestKey),
	})
	if err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("chatlog: s3 get manifest: %w", err)
		}
	} else {
		existing, _ = io.ReadAll(getResp.Body)
		getResp.Body.Close()
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("chatlog: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "404") || strings.Contains(msg, "not found")
}
