// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package debug

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/tarbatch/config"
	"github.com/cardinalhq/tarbatch/internal/archive"
	"github.com/cardinalhq/tarbatch/internal/awsclient"
)

func GetS3LSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s3ls",
		Short: "List the convertible archives under a bucket prefix in S3 or GCS",
		RunE: func(c *cobra.Command, _ []string) error {
			bucketID, err := c.Flags().GetString("bucket")
			if err != nil {
				return fmt.Errorf("failed to get bucket flag: %w", err)
			}
			prefix, err := c.Flags().GetString("prefix")
			if err != nil {
				return fmt.Errorf("failed to get prefix flag: %w", err)
			}
			all, err := c.Flags().GetBool("all")
			if err != nil {
				return fmt.Errorf("failed to get all flag: %w", err)
			}

			cfg, err := config.Load(nil)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			gcs, err := c.Flags().GetBool("gcs")
			if err != nil {
				return fmt.Errorf("failed to get gcs flag: %w", err)
			}
			return runS3LS(c.Context(), cfg, bucketID, prefix, all, gcs)
		},
	}

	cmd.Flags().String("bucket", "", "S3 bucket to list")
	if err := cmd.MarkFlagRequired("bucket"); err != nil {
		panic(fmt.Errorf("failed to mark bucket flag as required: %w", err))
	}
	cmd.Flags().String("prefix", "", "S3 prefix to list")
	cmd.Flags().Bool("all", false, "List every key, not only supported archives")
	cmd.Flags().Bool("gcs", false, "List a Google Cloud Storage bucket through its S3 interoperability endpoint")

	return cmd
}

func runS3LS(ctx context.Context, cfg *config.Config, bucketID, prefix string, all, gcs bool) error {
	mgr, err := awsclient.NewManager(ctx, "tarbatch-s3ls")
	if err != nil {
		return err
	}
	s3client := mgr.Client(cfg.CloudStorage().S3Target(gcs))

	scheme := "s3"
	if gcs {
		scheme = "gs"
	}
	return listS3Archives(ctx, s3client.Client, scheme, bucketID, prefix, all)
}

// listS3Archives prints the URL of every key under prefix that
// tar2multi accepts. It logs any paging/list errors and bubbles them up.
func listS3Archives(ctx context.Context, s3client *s3.Client, scheme, bucketID, prefix string, all bool) error {
	paginator := s3.NewListObjectsV2Paginator(s3client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketID),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("Failed to list S3 objects",
				slog.String("bucket", bucketID),
				slog.String("prefix", prefix),
				slog.Any("error", err),
			)
			return err
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if _, _, err := archive.ParseName(key); err != nil && !all {
				continue
			}
			fmt.Printf("%s://%s/%s\n", scheme, bucketID, key)
		}
	}

	return nil
}
