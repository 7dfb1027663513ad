package bucket

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/cuemby/stagehand/pkg/log"
)

// maxBatch is the most keys DeleteObjects accepts per request
const maxBatch = 1000

// S3API is the subset of the S3 client the purger needs
type S3API interface {
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// Options controls a purge
type Options struct {
	// DryRun lists what would be deleted without deleting it
	DryRun bool
	// DeleteBucket removes the bucket once it is empty
	DeleteBucket bool
}

// Result summarizes a purge
type Result struct {
	Bucket        string
	Versions      int
	DeleteMarkers int
	Deleted       int
	Failed        []Failure
	BucketDeleted bool
}

// Failure is a single object S3 refused to delete
type Failure struct {
	Key       string
	VersionID string
	Code      string
	Message   string
}

// Purger empties versioned buckets. CodePipeline artifact buckets keep
// every object version, so CloudFormation cannot delete them on stack
// teardown until they are purged.
type Purger struct {
	client S3API
	logger zerolog.Logger
}

// NewPurger creates a purger over an S3 client
func NewPurger(client S3API) *Purger {
	return &Purger{
		client: client,
		logger: log.WithComponent("bucket"),
	}
}

// PurgeVersions deletes every object version and delete marker in bucket
func (p *Purger) PurgeVersions(ctx context.Context, bucket string, opts Options) (*Result, error) {
	result := &Result{Bucket: bucket}

	var keyMarker, versionMarker *string
	for {
		out, err := p.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(bucket),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionMarker,
		})
		if err != nil {
			return result, fmt.Errorf("failed to list object versions in %s: %w", bucket, err)
		}

		ids := make([]s3types.ObjectIdentifier, 0, len(out.Versions)+len(out.DeleteMarkers))
		for _, v := range out.Versions {
			ids = append(ids, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range out.DeleteMarkers {
			ids = append(ids, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}
		result.Versions += len(out.Versions)
		result.DeleteMarkers += len(out.DeleteMarkers)

		if !opts.DryRun {
			if err := p.deleteBatches(ctx, bucket, ids, result); err != nil {
				return result, err
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		keyMarker, versionMarker = out.NextKeyMarker, out.NextVersionIdMarker
	}

	p.logger.Info().
		Str("bucket", bucket).
		Int("versions", result.Versions).
		Int("delete_markers", result.DeleteMarkers).
		Int("deleted", result.Deleted).
		Int("failed", len(result.Failed)).
		Bool("dry_run", opts.DryRun).
		Msg("Purged bucket versions")

	if opts.DeleteBucket && !opts.DryRun {
		if len(result.Failed) > 0 {
			return result, fmt.Errorf("bucket %s not deleted: %d objects could not be removed", bucket, len(result.Failed))
		}
		if _, err := p.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return result, fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
		}
		result.BucketDeleted = true
	}
	return result, nil
}

func (p *Purger) deleteBatches(ctx context.Context, bucket string, ids []s3types.ObjectIdentifier, result *Result) error {
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))

		out, err := p.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{
				Objects: ids[start:end],
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects in %s: %w", bucket, err)
		}

		// quiet mode only reports failures
		result.Deleted += end - start - len(out.Errors)
		for _, e := range out.Errors {
			result.Failed = append(result.Failed, Failure{
				Key:       aws.ToString(e.Key),
				VersionID: aws.ToString(e.VersionId),
				Code:      aws.ToString(e.Code),
				Message:   aws.ToString(e.Message),
			})
		}
	}
	return nil
}
