package main

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/cuemby/stagehand/pkg/bucket"
	"github.com/cuemby/stagehand/pkg/cloud"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Maintain pipeline artifact buckets",
}

var bucketPurgeCmd = &cobra.Command{
	Use:   "purge BUCKET",
	Short: "Delete every object version in a bucket",
	Long: `Delete every object version and delete marker in a versioned bucket so
that CloudFormation can remove it when a pipeline stack is torn down.

Examples:
  stagehand bucket purge backstage-pipeline-artifacts --dry-run
  stagehand bucket purge backstage-pipeline-artifacts --delete-bucket`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		region, _ := cmd.Flags().GetString("region")
		profile, _ := cmd.Flags().GetString("profile")
		endpoint, _ := cmd.Flags().GetString("endpoint")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		deleteBucket, _ := cmd.Flags().GetBool("delete-bucket")

		awsCfg, err := cloud.LoadConfig(cmd.Context(), cloud.Options{
			Region:   region,
			Profile:  profile,
			Endpoint: endpoint,
		})
		if err != nil {
			return err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = endpoint != ""
		})

		result, err := bucket.NewPurger(client).PurgeVersions(cmd.Context(), args[0], bucket.Options{
			DryRun:       dryRun,
			DeleteBucket: deleteBucket,
		})
		if err != nil {
			return err
		}

		if dryRun {
			fmt.Printf("Would delete %d versions and %d delete markers from %s\n",
				result.Versions, result.DeleteMarkers, result.Bucket)
			return nil
		}

		fmt.Printf("✓ Deleted %d of %d objects from %s\n",
			result.Deleted, result.Versions+result.DeleteMarkers, result.Bucket)
		for _, f := range result.Failed {
			fmt.Printf("  ✗ %s (%s): %s: %s\n", f.Key, f.VersionID, f.Code, f.Message)
		}
		if result.BucketDeleted {
			fmt.Printf("✓ Bucket %s deleted\n", result.Bucket)
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d objects could not be deleted", len(result.Failed))
		}
		return nil
	},
}

func init() {
	bucketPurgeCmd.Flags().String("region", "", "AWS region (defaults to the shared config)")
	bucketPurgeCmd.Flags().Bool("dry-run", false, "List what would be deleted")
	bucketPurgeCmd.Flags().Bool("delete-bucket", false, "Delete the bucket once it is empty")
	addAWSFlags(bucketPurgeCmd)

	bucketCmd.AddCommand(bucketPurgeCmd)
}
