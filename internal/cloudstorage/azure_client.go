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

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/tarbatch/internal/azureclient"
)

// azureClient implements the Client interface for Azure Blob Storage
type azureClient struct {
	blobClient *azureclient.BlobClient
}

// OpenObject streams a blob. The bucket is the blob container name.
func (c *azureClient) OpenObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	ctx, span := c.blobClient.Tracer.Start(ctx, "cloudstorage.azureOpenObject",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	resp, err := c.blobClient.Client.DownloadStream(ctx, bucket, key, nil)
	if err != nil {
		span.RecordError(err)
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			recordOpenError(ctx, ProviderAzure, bucket, "not_found")
			return nil, 0, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		reason := "unknown"
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			reason = fmt.Sprintf("http_%d", respErr.StatusCode)
		}
		recordOpenError(ctx, ProviderAzure, bucket, reason)
		return nil, 0, fmt.Errorf("download blob %s/%s: %w", bucket, key, err)
	}

	size := int64(-1)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	recordOpen(ctx, ProviderAzure, bucket, size)
	return resp.Body, size, nil
}
