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

package azureclient

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel/trace"
)

// BlobClient pairs an azblob client with the tracer used for its calls.
type BlobClient struct {
	Client *azblob.Client
	Tracer trace.Tracer
}

type blobConfig struct {
	Endpoint string
}

// BlobOption is a functional option for GetBlob.
type BlobOption func(*blobConfig)

// WithBlobEndpoint sets the storage account URL,
// e.g. https://account.blob.core.windows.net/.
func WithBlobEndpoint(endpoint string) BlobOption {
	return func(c *blobConfig) {
		c.Endpoint = endpoint
	}
}

// GetBlob returns the cached client for the configured endpoint, creating
// it on first use.
func (m *Manager) GetBlob(ctx context.Context, opts ...BlobOption) (*BlobClient, error) {
	bc := blobConfig{}
	for _, o := range opts {
		o(&bc)
	}
	if bc.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	m.RLock()
	client, ok := m.blobClients[bc.Endpoint]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.blobClients[bc.Endpoint]; ok {
		return client, nil
	}

	azc, err := azblob.NewClient(bc.Endpoint, m.baseCred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	client = &BlobClient{
		Client: azc,
		Tracer: m.tracer,
	}
	m.blobClients[bc.Endpoint] = client
	return client, nil
}
