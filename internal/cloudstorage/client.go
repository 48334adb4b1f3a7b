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

// Package cloudstorage streams objects out of S3, GCS (through its S3
// interoperability endpoint) and Azure Blob Storage.
package cloudstorage

import (
	"context"
	"errors"
	"io"
)

const (
	ProviderAWS   = "aws"
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Client provides a unified interface for reading objects across providers.
type Client interface {
	// OpenObject returns a stream over the object's bytes and its size,
	// or -1 when the provider did not report one. The caller closes the stream.
	OpenObject(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
}

// ClientProvider creates a Client for a provider name.
type ClientProvider interface {
	NewClient(ctx context.Context, provider string) (Client, error)
}
