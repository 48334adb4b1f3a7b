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

package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/tarbatch/internal/awsclient"
)

// s3Client serves both AWS S3 and GCS through its S3 interop endpoint.
type s3Client struct {
	awsS3Client *awsclient.S3Client
	provider    string
}

func s3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKeyErr) || errors.As(err, &notFound)
}

// OpenObject starts a GetObject and hands back the response body.
func (c *s3Client) OpenObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	ctx, span := c.awsS3Client.Tracer.Start(ctx, "cloudstorage.s3OpenObject",
		trace.WithAttributes(
			attribute.String("provider", c.provider),
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	out, err := c.awsS3Client.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		if s3ErrorIs404(err) {
			recordOpenError(ctx, c.provider, bucket, "not_found")
			return nil, 0, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		recordOpenError(ctx, c.provider, bucket, "unknown")
		return nil, 0, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}

	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	recordOpen(ctx, c.provider, bucket, size)
	return out.Body, size, nil
}
